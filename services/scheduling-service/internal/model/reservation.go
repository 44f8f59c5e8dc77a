package model

import "time"

// ReservationTTL is how long a hold protects a slot while the student
// completes checkout.
const ReservationTTL = 5 * time.Minute

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusPromoted  ReservationStatus = "promoted"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// Reservation is a short-lived exclusive claim on an interval, created before
// payment and either promoted to a Booking or released.
type Reservation struct {
	ID        string
	TeacherID string
	StudentID string
	StartTime time.Time
	EndTime   time.Time
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ActiveAt applies lazy expiry: a stored Active row whose deadline has passed
// no longer holds the slot, whether or not the expiry timer has fired yet.
func (r Reservation) ActiveAt(now time.Time) bool {
	return r.Status == ReservationStatusActive && now.Before(r.ExpiresAt)
}
