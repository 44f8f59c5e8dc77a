package timeutil

import (
	"testing"
	"time"

	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
)

func TestToInstant(t *testing.T) {
	got, err := ToInstant("2024-06-03T15:00:00+02:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("instant not normalised to UTC: %s", got.Location())
	}
}

func TestToInstant_Invalid(t *testing.T) {
	for _, in := range []string{"", "not-a-time", "2024-06-03", "2024-06-03 13:00"} {
		_, err := ToInstant(in)
		if err == nil {
			t.Fatalf("expected error for %q", in)
		}
		if model.KindOf(err) != model.ErrorKindInvalidTime {
			t.Fatalf("expected invalid_time kind for %q, got %q", in, model.KindOf(err))
		}
	}
}

func TestResolveZone_Fallback(t *testing.T) {
	if got := ResolveZone("Europe/Berlin"); got.String() != "Europe/Berlin" {
		t.Fatalf("expected Europe/Berlin, got %s", got)
	}
	for _, in := range []string{"", "Mars/Olympus", "UTC+25"} {
		if got := ResolveZone(in); got.String() != FallbackZone {
			t.Fatalf("expected fallback for %q, got %s", in, got)
		}
	}
}

// Projecting an instant into a zone and re-reading the wall clock in that zone
// must land back on the same instant, to the minute.
func TestProject_RoundTrip(t *testing.T) {
	loc := ResolveZone("America/New_York")
	start := time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	p := Project(start, end, loc)
	if p.Date != "2024-06-03" || p.Start != "09:00" || p.End != "09:30" {
		t.Fatalf("unexpected projection: %+v", p)
	}

	back, err := time.ParseInLocation("2006-01-02 15:04", p.Date+" "+p.Start, loc)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !back.UTC().Equal(start) {
		t.Fatalf("round trip drifted: %s vs %s", back.UTC(), start)
	}
}
