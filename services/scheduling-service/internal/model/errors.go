package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies scheduling failures so callers can decide between
// "fix your input", "refresh and retry", and "give up" without matching on
// message text.
type ErrorKind string

const (
	ErrorKindInvalidTime        ErrorKind = "invalid_time"
	ErrorKindInvalidRange       ErrorKind = "invalid_range"
	ErrorKindOverlap            ErrorKind = "overlap"
	ErrorKindSlotUnavailable    ErrorKind = "slot_unavailable"
	ErrorKindReservationExpired ErrorKind = "reservation_expired"
	ErrorKindBookingConflict    ErrorKind = "booking_conflict"
	ErrorKindHasBookings        ErrorKind = "has_bookings"
	ErrorKindUnauthorized       ErrorKind = "unauthorized"
	ErrorKindNotFound           ErrorKind = "not_found"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Ef(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapE(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the classification of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
