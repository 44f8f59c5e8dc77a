package availability

import (
	"testing"
	"time"
)

func at(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2024, 6, 3, hour, min, 0, 0, time.UTC)
}

func TestOverlaps_HalfOpen(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"touching endpoints", Interval{at(t, 9, 0), at(t, 9, 30)}, Interval{at(t, 9, 30), at(t, 10, 0)}, false},
		{"partial overlap", Interval{at(t, 9, 0), at(t, 9, 45)}, Interval{at(t, 9, 30), at(t, 10, 0)}, true},
		{"contained", Interval{at(t, 9, 0), at(t, 11, 0)}, Interval{at(t, 9, 30), at(t, 10, 0)}, true},
		{"disjoint", Interval{at(t, 9, 0), at(t, 9, 30)}, Interval{at(t, 10, 0), at(t, 10, 30)}, false},
		{"identical", Interval{at(t, 9, 0), at(t, 9, 30)}, Interval{at(t, 9, 0), at(t, 9, 30)}, true},
	}
	for _, c := range cases {
		if got := c.a.Overlaps(c.b); got != c.want {
			t.Errorf("%s: a.Overlaps(b) = %v, want %v", c.name, got, c.want)
		}
		if got := c.b.Overlaps(c.a); got != c.want {
			t.Errorf("%s: overlap is not symmetric", c.name)
		}
	}
}

func TestTile_FullWindow(t *testing.T) {
	slots := Tile(Interval{at(t, 9, 0), at(t, 11, 0)}, 30*time.Minute)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	window := Interval{at(t, 9, 0), at(t, 11, 0)}
	prevEnd := window.Start
	for i, s := range slots {
		if !window.Contains(s) {
			t.Fatalf("slot %d escapes the window: %+v", i, s)
		}
		if !s.Start.Equal(prevEnd) {
			t.Fatalf("slot %d not consecutive: starts %s, previous ended %s", i, s.Start, prevEnd)
		}
		prevEnd = s.End
	}
}

func TestTile_DropsPartialTail(t *testing.T) {
	slots := Tile(Interval{at(t, 9, 0), at(t, 9, 45)}, 30*time.Minute)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(t, 9, 0)) || !slots[0].End.Equal(at(t, 9, 30)) {
		t.Fatalf("unexpected slot: %+v", slots[0])
	}
}

func TestTile_TooShort(t *testing.T) {
	if slots := Tile(Interval{at(t, 9, 0), at(t, 9, 15)}, 30*time.Minute); slots != nil {
		t.Fatalf("expected no slots, got %v", slots)
	}
	if slots := Tile(Interval{at(t, 9, 0), at(t, 9, 0)}, 30*time.Minute); slots != nil {
		t.Fatalf("expected no slots for empty window, got %v", slots)
	}
}

func TestSlotID_Deterministic(t *testing.T) {
	slot := Interval{at(t, 13, 0), at(t, 13, 30)}
	a := SlotID("teacher-1", slot)
	b := SlotID("teacher-1", Interval{at(t, 13, 0), at(t, 13, 30)})
	if a != b {
		t.Fatalf("same slot produced different ids: %s vs %s", a, b)
	}
	if SlotID("teacher-2", slot) == a {
		t.Fatal("different teachers must not share slot ids")
	}
	if SlotID("teacher-1", Interval{at(t, 13, 30), at(t, 14, 0)}) == a {
		t.Fatal("different intervals must not share slot ids")
	}
}
