package conflict

import (
	"testing"
	"time"

	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/availability"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
)

var now = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func hhmm(hour, min int) time.Time {
	return time.Date(2024, 6, 3, hour, min, 0, 0, time.UTC)
}

func openWindow(start, end time.Time) model.AvailabilityWindow {
	return model.AvailabilityWindow{ID: "w1", TeacherID: "t1", StartTime: start, EndTime: end, IsAvailable: true}
}

func TestEvaluate_RequiresOpenWindow(t *testing.T) {
	candidate := availability.Interval{Start: hhmm(13, 0), End: hhmm(13, 30)}

	if Evaluate(candidate, "s1", nil, nil, nil, now) {
		t.Fatal("free with no windows at all")
	}

	closed := openWindow(hhmm(13, 0), hhmm(15, 0))
	closed.IsAvailable = false
	if Evaluate(candidate, "s1", []model.AvailabilityWindow{closed}, nil, nil, now) {
		t.Fatal("free inside a closed window")
	}

	windows := []model.AvailabilityWindow{openWindow(hhmm(13, 0), hhmm(15, 0))}
	if !Evaluate(candidate, "s1", windows, nil, nil, now) {
		t.Fatal("not free inside an open empty window")
	}

	// Partially outside the window.
	edge := availability.Interval{Start: hhmm(14, 45), End: hhmm(15, 15)}
	if Evaluate(edge, "s1", windows, nil, nil, now) {
		t.Fatal("free despite extending past the window end")
	}
}

func TestEvaluate_BookingOfAnotherStudentBlocks(t *testing.T) {
	windows := []model.AvailabilityWindow{openWindow(hhmm(13, 0), hhmm(15, 0))}
	candidate := availability.Interval{Start: hhmm(13, 0), End: hhmm(13, 30)}

	booking := model.Booking{ID: "b1", TeacherID: "t1", StudentID: "s2",
		StartTime: hhmm(13, 0), EndTime: hhmm(13, 30), Status: model.BookingStatusConfirmed}

	if Evaluate(candidate, "s1", windows, []model.Booking{booking}, nil, now) {
		t.Fatal("free despite another student's booking")
	}

	// The same interval is not a conflict against its own holder.
	if !Evaluate(candidate, "s2", windows, []model.Booking{booking}, nil, now) {
		t.Fatal("student conflicts with their own booking")
	}

	// Cancelled bookings release the interval.
	booking.Status = model.BookingStatusCancelled
	if !Evaluate(candidate, "s1", windows, []model.Booking{booking}, nil, now) {
		t.Fatal("cancelled booking still blocks")
	}

	// Touching slots never conflict.
	adjacent := availability.Interval{Start: hhmm(13, 30), End: hhmm(14, 0)}
	booking.Status = model.BookingStatusConfirmed
	if !Evaluate(adjacent, "s1", windows, []model.Booking{booking}, nil, now) {
		t.Fatal("adjacent slot treated as overlapping")
	}
}

func TestEvaluate_ReservationOfAnotherStudentBlocks(t *testing.T) {
	windows := []model.AvailabilityWindow{openWindow(hhmm(13, 0), hhmm(15, 0))}
	candidate := availability.Interval{Start: hhmm(13, 0), End: hhmm(13, 30)}

	hold := model.Reservation{ID: "r1", TeacherID: "t1", StudentID: "s2",
		StartTime: hhmm(13, 0), EndTime: hhmm(13, 30),
		Status: model.ReservationStatusActive, ExpiresAt: now.Add(5 * time.Minute)}

	if Evaluate(candidate, "s1", windows, nil, []model.Reservation{hold}, now) {
		t.Fatal("free despite another student's active hold")
	}
	if !Evaluate(candidate, "s2", windows, nil, []model.Reservation{hold}, now) {
		t.Fatal("student conflicts with their own hold")
	}

	// Lazy expiry: a stored Active row past its deadline no longer blocks.
	stale := hold
	stale.ExpiresAt = now.Add(-time.Second)
	if !Evaluate(candidate, "s1", windows, nil, []model.Reservation{stale}, now) {
		t.Fatal("expired hold still blocks")
	}

	cancelled := hold
	cancelled.Status = model.ReservationStatusCancelled
	if !Evaluate(candidate, "s1", windows, nil, []model.Reservation{cancelled}, now) {
		t.Fatal("cancelled hold still blocks")
	}
}

// A partially booked window keeps offering its remaining sub-slots: freeness
// is decided per slot against bookings, not by the window's open flag alone.
func TestEvaluate_PartiallyBookedWindow(t *testing.T) {
	windows := []model.AvailabilityWindow{openWindow(hhmm(13, 0), hhmm(15, 0))}
	booked := model.Booking{ID: "b1", TeacherID: "t1", StudentID: "s2",
		StartTime: hhmm(13, 0), EndTime: hhmm(13, 30), Status: model.BookingStatusScheduled}

	free := availability.Interval{Start: hhmm(14, 0), End: hhmm(14, 30)}
	if !Evaluate(free, "s1", windows, []model.Booking{booked}, nil, now) {
		t.Fatal("free sub-slot of a partially booked window reported busy")
	}
}
