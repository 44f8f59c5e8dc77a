package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/availability"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/timeutil"
)

// SlotService derives the bookable slot list for a teacher's day. It is
// stateless: slots are recomputed from windows, bookings and holds on every
// call, never stored.
type SlotService struct {
	pool         *db.Pool
	windows      *storage.WindowRepository
	bookings     *storage.BookingRepository
	reservations *storage.ReservationRepository
	logger       *slog.Logger
}

func NewSlotService(pool *db.Pool, windows *storage.WindowRepository, bookings *storage.BookingRepository, reservations *storage.ReservationRepository, logger *slog.Logger) *SlotService {
	return &SlotService{
		pool:         pool,
		windows:      windows,
		bookings:     bookings,
		reservations: reservations,
		logger:       logger,
	}
}

// GetSlots tiles the teacher's open windows on the given calendar day (UTC)
// into fixed slots, drops the ones covered by a blocking booking or a live
// hold of any student, and projects the rest into the viewer's zone.
func (s *SlotService) GetSlots(ctx context.Context, teacherID, date, zone string) ([]model.Slot, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, model.WrapE(model.ErrorKindInvalidTime, "date must be YYYY-MM-DD", err)
	}
	dayStart := day.UTC()
	dayEnd := dayStart.Add(24 * time.Hour)
	loc := timeutil.ResolveZone(zone)
	now := time.Now().UTC()

	windows, err := s.windows.ListOpenIntersecting(ctx, s.pool, teacherID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list open windows: %w", err)
	}
	if len(windows) == 0 {
		return []model.Slot{}, nil
	}

	busy, err := s.busyIntervals(ctx, teacherID, dayStart, dayEnd, now)
	if err != nil {
		return nil, err
	}

	slots := make([]model.Slot, 0, 16)
	for _, w := range windows {
		tiled := availability.Tile(availability.Interval{Start: w.StartTime, End: w.EndTime}, model.SlotDuration)
		for _, iv := range tiled {
			if !iv.Overlaps(availability.Interval{Start: dayStart, End: dayEnd}) {
				continue
			}
			if availability.OverlapsAny(iv, busy) {
				continue
			}
			p := timeutil.Project(iv.Start, iv.End, loc)
			slots = append(slots, model.Slot{
				ID:           availability.SlotID(teacherID, iv),
				TeacherID:    teacherID,
				StartTime:    iv.Start,
				EndTime:      iv.End,
				DisplayDate:  p.Date,
				DisplayStart: p.Start,
				DisplayEnd:   p.End,
			})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	return slots, nil
}

func (s *SlotService) busyIntervals(ctx context.Context, teacherID string, from, to, now time.Time) ([]availability.Interval, error) {
	blocking, err := s.bookings.ListBlockingOverlapping(ctx, s.pool, teacherID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	held, err := s.reservations.ListActiveOverlapping(ctx, s.pool, teacherID, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	busy := make([]availability.Interval, 0, len(blocking)+len(held))
	for _, b := range blocking {
		busy = append(busy, availability.Interval{Start: b.StartTime, End: b.EndTime})
	}
	for _, r := range held {
		busy = append(busy, availability.Interval{Start: r.StartTime, End: r.EndTime})
	}
	return busy, nil
}
