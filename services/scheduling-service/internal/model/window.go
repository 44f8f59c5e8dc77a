package model

import "time"

// MinWindowDuration is the shortest availability window a teacher may declare.
const MinWindowDuration = 30 * time.Minute

// AvailabilityWindow is a teacher-declared period during which lessons can be
// booked. Windows for the same teacher never overlap; the schema enforces this
// with an exclusion constraint and the service reports it as ErrorKindOverlap.
type AvailabilityWindow struct {
	ID          string
	TeacherID   string
	StartTime   time.Time
	EndTime     time.Time
	IsAvailable bool
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
