// Package restore reopens availability windows once the bookings covering
// them are cancelled.
package restore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/outbox"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
)

type Restorer struct {
	pool       *db.Pool
	windows    *storage.WindowRepository
	bookings   *storage.BookingRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewRestorer(pool *db.Pool, windows *storage.WindowRepository, bookings *storage.BookingRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *Restorer {
	return &Restorer{
		pool:       pool,
		windows:    windows,
		bookings:   bookings,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// OnBookingCancelled reopens every closed window intersecting the cancelled
// booking that no remaining blocking booking still covers. Runs after the
// cancellation commits; a failure here is logged and retried on the next
// cancellation touching the same windows, it never undoes the cancel.
func (r *Restorer) OnBookingCancelled(ctx context.Context, b model.Booking) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := storage.AcquireTeacherLock(ctx, tx, b.TeacherID); err != nil {
		return fmt.Errorf("lock teacher calendar: %w", err)
	}

	closed, err := r.windows.ListClosedIntersecting(ctx, tx, b.TeacherID, b.StartTime, b.EndTime)
	if err != nil {
		return fmt.Errorf("list closed windows: %w", err)
	}

	var restored []string
	for _, w := range closed {
		blocking, err := r.bookings.ListBlockingOverlapping(ctx, tx, w.TeacherID, w.StartTime, w.EndTime)
		if err != nil {
			return fmt.Errorf("check remaining bookings: %w", err)
		}
		if len(blocking) > 0 {
			continue
		}

		if _, err := r.windows.SetAvailable(ctx, tx, w.ID, true); err != nil {
			return fmt.Errorf("reopen window %s: %w", w.ID, err)
		}
		note := fmt.Sprintf("reopened %s after cancellation of booking %s", time.Now().UTC().Format(time.RFC3339), b.ID)
		if err := r.windows.AppendNote(ctx, tx, w.ID, note); err != nil {
			return fmt.Errorf("annotate window %s: %w", w.ID, err)
		}
		restored = append(restored, w.ID)
	}

	for _, id := range restored {
		payload, err := json.Marshal(map[string]any{
			"window_id":  id,
			"teacher_id": b.TeacherID,
			"booking_id": b.ID,
		})
		if err != nil {
			return fmt.Errorf("build event payload: %w", err)
		}
		if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "availability_window",
			AggregateID:   id,
			EventType:     outbox.EventWindowRestored,
			Payload:       payload,
		}); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if len(restored) > 0 {
		r.logger.Info("availability restored",
			"teacher_id", b.TeacherID,
			"booking_id", b.ID,
			"windows", len(restored),
		)
	}
	return nil
}
