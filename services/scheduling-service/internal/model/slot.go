package model

import "time"

// SlotDuration is the fixed length of a bookable slot.
const SlotDuration = 30 * time.Minute

// Slot is derived, never persisted: a 30-minute sub-interval of exactly one
// open availability window. Its ID is deterministic over teacher+start+end so
// a client can recognise a previously chosen slot across refreshes.
type Slot struct {
	ID           string
	TeacherID    string
	StartTime    time.Time
	EndTime      time.Time
	DisplayDate  string
	DisplayStart string
	DisplayEnd   string
}
