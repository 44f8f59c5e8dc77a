// Package conflict decides whether a candidate interval is bookable. The rule
// set lives in Evaluate, a pure function over loaded calendar state, so the
// same logic runs against a plain read or inside the transaction that is about
// to write.
package conflict

import (
	"context"
	"time"

	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/availability"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
)

type Checker struct {
	pool         *db.Pool
	windows      *storage.WindowRepository
	bookings     *storage.BookingRepository
	reservations *storage.ReservationRepository
}

func NewChecker(pool *db.Pool, windows *storage.WindowRepository, bookings *storage.BookingRepository, reservations *storage.ReservationRepository) *Checker {
	return &Checker{pool: pool, windows: windows, bookings: bookings, reservations: reservations}
}

// IsFree reports whether the candidate interval can be claimed by the given
// student. A stale true is possible under concurrency; writers must call
// IsFreeQ again inside their transaction before acting on it.
func (c *Checker) IsFree(ctx context.Context, teacherID string, candidate availability.Interval, studentID string) (bool, error) {
	return c.IsFreeQ(ctx, c.pool, teacherID, candidate, studentID, time.Now().UTC())
}

// IsFreeQ runs the freeness check through the given querier, which may be the
// transaction holding the teacher's calendar lock.
func (c *Checker) IsFreeQ(ctx context.Context, q storage.Querier, teacherID string, candidate availability.Interval, studentID string, now time.Time) (bool, error) {
	windows, err := c.windows.ListOpenIntersecting(ctx, q, teacherID, candidate.Start, candidate.End)
	if err != nil {
		return false, err
	}
	bookings, err := c.bookings.ListBlockingOverlapping(ctx, q, teacherID, candidate.Start, candidate.End)
	if err != nil {
		return false, err
	}
	reservations, err := c.reservations.ListActiveOverlapping(ctx, q, teacherID, candidate.Start, candidate.End, now)
	if err != nil {
		return false, err
	}
	return Evaluate(candidate, studentID, windows, bookings, reservations, now), nil
}

// Evaluate applies the conflict rules to already-loaded state:
//
//  1. The candidate must lie fully inside an open window.
//  2. No blocking booking of a different student may overlap it.
//  3. No active, non-expired reservation of a different student may overlap it.
//
// A student's own booking or hold on the interval never conflicts with
// themselves, which keeps reservation creation idempotent per requester.
func Evaluate(candidate availability.Interval, studentID string, windows []model.AvailabilityWindow, bookings []model.Booking, reservations []model.Reservation, now time.Time) bool {
	if !candidate.Valid() {
		return false
	}

	contained := false
	for _, w := range windows {
		if !w.IsAvailable {
			continue
		}
		if (availability.Interval{Start: w.StartTime, End: w.EndTime}).Contains(candidate) {
			contained = true
			break
		}
	}
	if !contained {
		return false
	}

	for _, b := range bookings {
		if !b.Status.Blocking() || b.StudentID == studentID {
			continue
		}
		if candidate.Overlaps(availability.Interval{Start: b.StartTime, End: b.EndTime}) {
			return false
		}
	}

	for _, rv := range reservations {
		if !rv.ActiveAt(now) || rv.StudentID == studentID {
			continue
		}
		if candidate.Overlaps(availability.Interval{Start: rv.StartTime, End: rv.EndTime}) {
			return false
		}
	}

	return true
}
