// Package schedule holds the teacher-facing calendar operations: declaring
// and managing availability windows, the booking lifecycle, and the slot
// listing students browse.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/availability"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
)

type AvailabilityService struct {
	pool     *db.Pool
	windows  *storage.WindowRepository
	bookings *storage.BookingRepository
	logger   *slog.Logger
}

func NewAvailabilityService(pool *db.Pool, windows *storage.WindowRepository, bookings *storage.BookingRepository, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{pool: pool, windows: windows, bookings: bookings, logger: logger}
}

// Declare records a new open window for the teacher. Windows for one teacher
// never overlap; the exclusion constraint reports violations as Overlap.
func (s *AvailabilityService) Declare(ctx context.Context, teacherID string, iv availability.Interval, note string) (model.AvailabilityWindow, error) {
	if !iv.Valid() {
		return model.AvailabilityWindow{}, model.E(model.ErrorKindInvalidRange, "window must end after it starts")
	}
	if iv.Duration() < model.MinWindowDuration {
		return model.AvailabilityWindow{}, model.Ef(model.ErrorKindInvalidRange, "window must span at least %s", model.MinWindowDuration)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.AvailabilityWindow{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := storage.AcquireTeacherLock(ctx, tx, teacherID); err != nil {
		return model.AvailabilityWindow{}, fmt.Errorf("lock teacher calendar: %w", err)
	}

	w := model.AvailabilityWindow{
		ID:          uuid.NewString(),
		TeacherID:   teacherID,
		StartTime:   iv.Start,
		EndTime:     iv.End,
		IsAvailable: true,
		Note:        note,
	}
	if err := s.windows.Insert(ctx, tx, &w); err != nil {
		if storage.IsConflict(err) {
			return model.AvailabilityWindow{}, model.WrapE(model.ErrorKindOverlap, "window overlaps an existing window", err)
		}
		return model.AvailabilityWindow{}, fmt.Errorf("insert window: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.AvailabilityWindow{}, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("availability declared",
		"window_id", w.ID,
		"teacher_id", teacherID,
		"start", w.StartTime.Format(time.RFC3339),
		"end", w.EndTime.Format(time.RFC3339),
	)
	return w, nil
}

// Query lists every window of the teacher intersecting [from, to), open or closed.
func (s *AvailabilityService) Query(ctx context.Context, teacherID string, from, to time.Time) ([]model.AvailabilityWindow, error) {
	if !from.Before(to) {
		return nil, model.E(model.ErrorKindInvalidRange, "query range must end after it starts")
	}
	return s.windows.ListIntersecting(ctx, s.pool, teacherID, from, to)
}

// SetAvailable toggles a window. Closing is always allowed and never cancels
// bookings; reopening is refused while blocking bookings overlap the window.
func (s *AvailabilityService) SetAvailable(ctx context.Context, windowID string, available bool) (model.AvailabilityWindow, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.AvailabilityWindow{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	w, err := s.windows.GetForUpdate(ctx, tx, windowID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.AvailabilityWindow{}, model.E(model.ErrorKindNotFound, "window not found")
		}
		return model.AvailabilityWindow{}, fmt.Errorf("load window: %w", err)
	}

	if available && !w.IsAvailable {
		blocking, err := s.bookings.ListBlockingOverlapping(ctx, tx, w.TeacherID, w.StartTime, w.EndTime)
		if err != nil {
			return model.AvailabilityWindow{}, fmt.Errorf("check bookings: %w", err)
		}
		if len(blocking) > 0 {
			return model.AvailabilityWindow{}, model.E(model.ErrorKindBookingConflict, "window still has active bookings")
		}
	}

	updated, err := s.windows.SetAvailable(ctx, tx, windowID, available)
	if err != nil {
		return model.AvailabilityWindow{}, fmt.Errorf("update window: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.AvailabilityWindow{}, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("availability toggled", "window_id", windowID, "available", available)
	return updated, nil
}

// Delete removes a window outright. Refused while blocking bookings overlap it.
func (s *AvailabilityService) Delete(ctx context.Context, windowID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	w, err := s.windows.GetForUpdate(ctx, tx, windowID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.E(model.ErrorKindNotFound, "window not found")
		}
		return fmt.Errorf("load window: %w", err)
	}

	blocking, err := s.bookings.ListBlockingOverlapping(ctx, tx, w.TeacherID, w.StartTime, w.EndTime)
	if err != nil {
		return fmt.Errorf("check bookings: %w", err)
	}
	if len(blocking) > 0 {
		return model.E(model.ErrorKindHasBookings, "window has active bookings")
	}

	if err := s.windows.Delete(ctx, tx, windowID); err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("availability deleted", "window_id", windowID, "teacher_id", w.TeacherID)
	return nil
}
