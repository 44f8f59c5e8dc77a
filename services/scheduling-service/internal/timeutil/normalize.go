// Package timeutil is the single conversion boundary between wall-clock input
// and the UTC instants the engine stores and compares. Nothing outside this
// package should shift times between zones.
package timeutil

import (
	"time"

	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
)

// FallbackZone is used whenever a caller-supplied zone cannot be resolved.
const FallbackZone = "Etc/UTC"

// ToInstant parses an ISO-8601 timestamp with explicit offset (or Z) into a
// UTC instant.
func ToInstant(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, model.WrapE(model.ErrorKindInvalidTime, "timestamp must be RFC 3339 with offset", err)
	}
	return t.UTC(), nil
}

// ResolveZone returns the IANA zone named by candidate, or the fallback zone.
// It never fails: display projection is best-effort and a bad zone label must
// not break a slot listing.
func ResolveZone(candidate string) *time.Location {
	if candidate != "" {
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc
		}
	}
	loc, err := time.LoadLocation(FallbackZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Projection is the wall-clock rendering of an interval in some display zone.
// It is for UI labels only and is never parsed back for comparison or storage.
type Projection struct {
	Date  string
	Start string
	End   string
}

func Project(start, end time.Time, loc *time.Location) Projection {
	localStart := start.In(loc)
	return Projection{
		Date:  localStart.Format("2006-01-02"),
		Start: localStart.Format("15:04"),
		End:   end.In(loc).Format("15:04"),
	}
}
