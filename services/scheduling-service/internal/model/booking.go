package model

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusScheduled BookingStatus = "scheduled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Blocking reports whether a booking in this status occupies its interval
// (i.e. counts against availability and conflicts with new holds).
func (s BookingStatus) Blocking() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusScheduled:
		return true
	}
	return false
}

// CanTransitionTo enforces the one-directional booking lifecycle.
// Cancelled is terminal and reachable from any blocking status.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if next == BookingStatusCancelled {
		return s.Blocking()
	}
	switch s {
	case BookingStatusPending:
		return next == BookingStatusConfirmed
	case BookingStatusConfirmed:
		return next == BookingStatusScheduled
	case BookingStatusScheduled:
		return next == BookingStatusCompleted
	}
	return false
}

type Booking struct {
	ID           string
	TeacherID    string
	StudentID    string
	StartTime    time.Time
	EndTime      time.Time
	Status       BookingStatus
	Notes        string
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}
