package model

import (
	"testing"
	"time"
)

func TestBookingStatusBlocking(t *testing.T) {
	blocking := []BookingStatus{BookingStatusPending, BookingStatusConfirmed, BookingStatusScheduled}
	for _, s := range blocking {
		if !s.Blocking() {
			t.Fatalf("%s should block its interval", s)
		}
	}
	for _, s := range []BookingStatus{BookingStatusCompleted, BookingStatusCancelled} {
		if s.Blocking() {
			t.Fatalf("%s should not block its interval", s)
		}
	}
}

func TestBookingStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusConfirmed, BookingStatusScheduled, true},
		{BookingStatusScheduled, BookingStatusCompleted, true},

		{BookingStatusPending, BookingStatusScheduled, false},
		{BookingStatusPending, BookingStatusCompleted, false},
		{BookingStatusConfirmed, BookingStatusCompleted, false},
		{BookingStatusConfirmed, BookingStatusPending, false},
		{BookingStatusCompleted, BookingStatusScheduled, false},

		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusScheduled, BookingStatusCancelled, true},
		{BookingStatusCompleted, BookingStatusCancelled, false},
		{BookingStatusCancelled, BookingStatusCancelled, false},

		{BookingStatusCancelled, BookingStatusConfirmed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestReservationActiveAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rv := Reservation{Status: ReservationStatusActive, ExpiresAt: now.Add(ReservationTTL)}

	if !rv.ActiveAt(now) {
		t.Fatalf("fresh reservation should be active")
	}
	if rv.ActiveAt(now.Add(ReservationTTL)) {
		t.Fatalf("reservation at its deadline should no longer hold the slot")
	}

	rv.Status = ReservationStatusPromoted
	if rv.ActiveAt(now) {
		t.Fatalf("promoted reservation should not count as an active hold")
	}
}
