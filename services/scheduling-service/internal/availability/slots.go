package availability

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Tile splits a window into consecutive non-overlapping slots of the given
// duration, starting at the window start. A final partial slot that would
// extend past the window end is dropped, never truncated.
func Tile(window Interval, duration time.Duration) []Interval {
	if duration <= 0 || !window.Valid() {
		return nil
	}

	var slots []Interval
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(duration) {
		slots = append(slots, Interval{Start: t, End: t.Add(duration)})
	}
	return slots
}

// SlotID derives a stable identifier from teacher and interval, so the same
// wall-clock slot maps to the same id on every query. Clients rely on this to
// detect whether a previously selected slot survived a refresh.
func SlotID(teacherID string, slot Interval) string {
	h := sha256.New()
	h.Write([]byte(teacherID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(slot.Start.UTC().Unix(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(slot.End.UTC().Unix(), 10)))
	return hex.EncodeToString(h.Sum(nil))[:20]
}
