package schedule

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

// AvailabilityRestorer reopens windows freed by a cancellation. Runs outside
// the cancellation transaction.
type AvailabilityRestorer interface {
	OnBookingCancelled(ctx context.Context, b model.Booking) error
}

type BookingService struct {
	pool       *db.Pool
	bookings   *storage.BookingRepository
	outboxRepo *outbox.Repository
	restorer   AvailabilityRestorer
	logger     *slog.Logger
}

func NewBookingService(pool *db.Pool, bookings *storage.BookingRepository, outboxRepo *outbox.Repository, restorer AvailabilityRestorer, logger *slog.Logger) *BookingService {
	return &BookingService{
		pool:       pool,
		bookings:   bookings,
		outboxRepo: outboxRepo,
		restorer:   restorer,
		logger:     logger,
	}
}

func (s *BookingService) Get(ctx context.Context, bookingID string) (model.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, model.E(model.ErrorKindNotFound, "booking not found")
		}
		return model.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	return b, nil
}

func (s *BookingService) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]model.Booking, error) {
	return s.bookings.ListByTeacher(ctx, teacherID, limit)
}

func (s *BookingService) ListByStudent(ctx context.Context, studentID string, limit int) ([]model.Booking, error) {
	return s.bookings.ListByStudent(ctx, studentID, limit)
}

// Transition moves a booking one step forward in its lifecycle. Illegal steps
// (skipping a state, or reviving a terminal booking) are refused.
func (s *BookingService) Transition(ctx context.Context, bookingID string, next model.BookingStatus) (model.Booking, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, model.E(model.ErrorKindNotFound, "booking not found")
		}
		return model.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	if b.Status == next {
		return b, nil
	}
	if !b.Status.CanTransitionTo(next) {
		return model.Booking{}, model.Ef(model.ErrorKindBookingConflict, "booking cannot move from %s to %s", b.Status, next)
	}

	if err := s.bookings.UpdateStatus(ctx, tx, bookingID, next); err != nil {
		return model.Booking{}, fmt.Errorf("update booking: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, fmt.Errorf("commit: %w", err)
	}

	b.Status = next
	s.logger.Info("booking transitioned", "booking_id", bookingID, "status", string(next))
	return b, nil
}

// Cancel ends a booking from any blocking state. Cancelling an already
// cancelled booking is a no-op; a completed booking cannot be cancelled.
// Window restoration runs after the cancellation commits and never fails it.
func (s *BookingService) Cancel(ctx context.Context, bookingID, reason string) (model.Booking, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, model.E(model.ErrorKindNotFound, "booking not found")
		}
		return model.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	if b.Status == model.BookingStatusCancelled {
		return b, nil
	}
	if !b.Status.CanTransitionTo(model.BookingStatusCancelled) {
		return model.Booking{}, model.Ef(model.ErrorKindBookingConflict, "booking in state %s cannot be cancelled", b.Status)
	}

	cancelledAt, err := s.bookings.Cancel(ctx, tx, bookingID, reason)
	if err != nil {
		return model.Booking{}, fmt.Errorf("cancel booking: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id": b.ID,
		"teacher_id": b.TeacherID,
		"student_id": b.StudentID,
		"start_time": b.StartTime.UTC().Format(time.RFC3339),
		"end_time":   b.EndTime.UTC().Format(time.RFC3339),
		"reason":     reason,
	})
	if err != nil {
		return model.Booking{}, fmt.Errorf("build event payload: %w", err)
	}
	if err := s.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     outbox.EventBookingCancelled,
		Payload:       payload,
	}); err != nil {
		return model.Booking{}, fmt.Errorf("write outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, fmt.Errorf("commit: %w", err)
	}

	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &cancelledAt
	b.CancelReason = reason
	s.logger.Info("booking cancelled", "booking_id", b.ID, "teacher_id", b.TeacherID, "reason", reason)

	if s.restorer != nil {
		if err := s.restorer.OnBookingCancelled(ctx, b); err != nil {
			s.logger.Error("window restoration failed", "booking_id", b.ID, "err", err)
		}
	}
	return b, nil
}
