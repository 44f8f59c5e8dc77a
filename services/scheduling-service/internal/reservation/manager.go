// Package reservation owns the short-lived exclusive holds students take on a
// slot while they finish checkout. All timer state is private to the Manager;
// other components interact with holds only through Create/Renew/Cancel/
// Expire/Promote.
package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/availability"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/conflict"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/outbox"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
)

type Manager struct {
	pool         *db.Pool
	reservations *storage.ReservationRepository
	bookings     *storage.BookingRepository
	outboxRepo   *outbox.Repository
	checker      *conflict.Checker
	logger       *slog.Logger
	ttl          time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewManager(
	pool *db.Pool,
	reservations *storage.ReservationRepository,
	bookings *storage.BookingRepository,
	outboxRepo *outbox.Repository,
	checker *conflict.Checker,
	logger *slog.Logger,
	ttl time.Duration,
) *Manager {
	if ttl <= 0 {
		ttl = model.ReservationTTL
	}
	return &Manager{
		pool:         pool,
		reservations: reservations,
		bookings:     bookings,
		outboxRepo:   outboxRepo,
		checker:      checker,
		logger:       logger,
		ttl:          ttl,
		timers:       map[string]*time.Timer{},
	}
}

// BookingMeta is the caller-supplied detail attached when a hold becomes a booking.
type BookingMeta struct {
	Notes string
}

// Create places a new hold for the student on the given interval. The free
// check and the insert run in one transaction under the teacher's calendar
// lock, so two students cannot both pass the check for overlapping intervals;
// the partial exclusion constraint on active reservations is the backstop.
// A non-empty idemKey makes retries of the same request return the original
// hold (replayed=true) instead of creating a second one.
func (m *Manager) Create(ctx context.Context, teacherID, studentID string, iv availability.Interval, idemKey string) (rv model.Reservation, replayed bool, err error) {
	if !iv.Valid() {
		return model.Reservation{}, false, model.E(model.ErrorKindInvalidRange, "reservation interval must end after it starts")
	}

	now := time.Now().UTC()
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idemKey != "" {
		rec, exists, err := m.reservations.LockIdempotencyKey(ctx, tx, studentID, idemKey)
		if err != nil {
			return model.Reservation{}, false, fmt.Errorf("lock idempotency key: %w", err)
		}
		if exists && rec.ReservationID != "" && rec.StatusCode > 0 {
			prior, err := m.reservations.Get(ctx, rec.ReservationID)
			if err != nil {
				return model.Reservation{}, false, fmt.Errorf("load replayed reservation: %w", err)
			}
			return prior, true, nil
		}
	}

	if err := storage.AcquireTeacherLock(ctx, tx, teacherID); err != nil {
		return model.Reservation{}, false, fmt.Errorf("lock teacher calendar: %w", err)
	}

	// A student holds at most one reservation; a new request replaces the old hold.
	released, err := m.reservations.CancelActiveByStudent(ctx, tx, studentID)
	if err != nil {
		return model.Reservation{}, false, fmt.Errorf("release prior hold: %w", err)
	}

	// Flip overdue rows first so the exclusion constraint matches logical state.
	if err := m.reservations.ExpireOverdueByTeacher(ctx, tx, teacherID, now); err != nil {
		return model.Reservation{}, false, fmt.Errorf("expire overdue holds: %w", err)
	}

	free, err := m.checker.IsFreeQ(ctx, tx, teacherID, iv, studentID, now)
	if err != nil {
		return model.Reservation{}, false, fmt.Errorf("conflict check: %w", err)
	}
	if !free {
		return model.Reservation{}, false, model.E(model.ErrorKindSlotUnavailable, "slot is no longer free")
	}

	rv = model.Reservation{
		ID:        uuid.NewString(),
		TeacherID: teacherID,
		StudentID: studentID,
		StartTime: iv.Start,
		EndTime:   iv.End,
		Status:    model.ReservationStatusActive,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.reservations.Insert(ctx, tx, &rv); err != nil {
		if storage.IsConflict(err) {
			return model.Reservation{}, false, model.WrapE(model.ErrorKindSlotUnavailable, "slot was claimed concurrently", err)
		}
		return model.Reservation{}, false, fmt.Errorf("insert reservation: %w", err)
	}

	if idemKey != "" {
		if err := m.reservations.FinalizeIdempotency(ctx, tx, studentID, idemKey, rv.ID, http.StatusCreated, nil); err != nil {
			return model.Reservation{}, false, fmt.Errorf("finalize idempotency key: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, false, fmt.Errorf("commit: %w", err)
	}

	for _, id := range released {
		m.stopTimer(id)
	}
	m.scheduleExpiry(rv.ID, rv.ExpiresAt)

	m.logger.Info("reservation created",
		"reservation_id", rv.ID,
		"teacher_id", teacherID,
		"student_id", studentID,
		"expires_at", rv.ExpiresAt.Format(time.RFC3339),
	)
	return rv, false, nil
}

// Renew replaces an active hold with a fresh one on the same interval,
// restarting the TTL. Used as a keep-alive while the student is mid-checkout.
func (m *Manager) Renew(ctx context.Context, reservationID string) (model.Reservation, error) {
	prior, err := m.reservations.Get(ctx, reservationID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Reservation{}, model.E(model.ErrorKindNotFound, "reservation not found")
		}
		return model.Reservation{}, fmt.Errorf("load reservation: %w", err)
	}

	now := time.Now().UTC()
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := storage.AcquireTeacherLock(ctx, tx, prior.TeacherID); err != nil {
		return model.Reservation{}, fmt.Errorf("lock teacher calendar: %w", err)
	}

	prior, err = m.reservations.GetForUpdate(ctx, tx, reservationID)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("reload reservation: %w", err)
	}
	if !prior.ActiveAt(now) {
		// Mark the row if the deadline passed before any timer fired.
		if prior.Status == model.ReservationStatusActive {
			if _, err := m.reservations.UpdateStatusIf(ctx, tx, reservationID, model.ReservationStatusActive, model.ReservationStatusExpired); err != nil {
				return model.Reservation{}, fmt.Errorf("expire stale reservation: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				// The sweeper flips the row later; the caller still sees expired.
				m.logger.Warn("stale hold not marked expired", "reservation_id", reservationID, "err", err)
			}
		}
		return model.Reservation{}, model.E(model.ErrorKindReservationExpired, "reservation is no longer active")
	}

	iv := availability.Interval{Start: prior.StartTime, End: prior.EndTime}
	if err := m.reservations.ExpireOverdueByTeacher(ctx, tx, prior.TeacherID, now); err != nil {
		return model.Reservation{}, fmt.Errorf("expire overdue holds: %w", err)
	}
	free, err := m.checker.IsFreeQ(ctx, tx, prior.TeacherID, iv, prior.StudentID, now)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("conflict check: %w", err)
	}
	if !free {
		return model.Reservation{}, model.E(model.ErrorKindSlotUnavailable, "interval was taken while the hold lapsed")
	}

	if _, err := m.reservations.UpdateStatusIf(ctx, tx, reservationID, model.ReservationStatusActive, model.ReservationStatusCancelled); err != nil {
		return model.Reservation{}, fmt.Errorf("retire prior hold: %w", err)
	}

	next := model.Reservation{
		ID:        uuid.NewString(),
		TeacherID: prior.TeacherID,
		StudentID: prior.StudentID,
		StartTime: prior.StartTime,
		EndTime:   prior.EndTime,
		Status:    model.ReservationStatusActive,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.reservations.Insert(ctx, tx, &next); err != nil {
		return model.Reservation{}, fmt.Errorf("insert renewed reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Reservation{}, fmt.Errorf("commit: %w", err)
	}

	m.stopTimer(reservationID)
	m.scheduleExpiry(next.ID, next.ExpiresAt)

	m.logger.Info("reservation renewed",
		"reservation_id", next.ID,
		"replaces", reservationID,
		"expires_at", next.ExpiresAt.Format(time.RFC3339),
	)
	return next, nil
}

// Cancel releases a hold immediately. Cancelling a reservation that already
// reached a terminal state is a no-op, so a cancel racing the expiry timer
// never errors.
func (m *Manager) Cancel(ctx context.Context, reservationID string) error {
	if _, err := m.reservations.Get(ctx, reservationID); err != nil {
		if storage.IsNotFound(err) {
			return model.E(model.ErrorKindNotFound, "reservation not found")
		}
		return fmt.Errorf("load reservation: %w", err)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cancelled, err := m.reservations.UpdateStatusIf(ctx, tx, reservationID, model.ReservationStatusActive, model.ReservationStatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m.stopTimer(reservationID)
	if cancelled {
		m.logger.Info("reservation cancelled", "reservation_id", reservationID)
	}
	return nil
}

// Expire is invoked by the per-reservation timer (and usable by the sweeper's
// foreground path). It only acts on rows still Active; any other state means
// cancellation or promotion won the race, which is fine.
func (m *Manager) Expire(ctx context.Context, reservationID string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	expired, err := m.reservations.UpdateStatusIf(ctx, tx, reservationID, model.ReservationStatusActive, model.ReservationStatusExpired)
	if err != nil {
		return fmt.Errorf("expire reservation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if expired {
		m.logger.Info("reservation expired", "reservation_id", reservationID)
	}
	return nil
}

// Promote converts an active hold into a pending booking once the external
// checkout flow confirms payment.
func (m *Manager) Promote(ctx context.Context, reservationID string, meta BookingMeta) (model.Booking, error) {
	rv, err := m.reservations.Get(ctx, reservationID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, model.E(model.ErrorKindNotFound, "reservation not found")
		}
		return model.Booking{}, fmt.Errorf("load reservation: %w", err)
	}

	now := time.Now().UTC()
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := storage.AcquireTeacherLock(ctx, tx, rv.TeacherID); err != nil {
		return model.Booking{}, fmt.Errorf("lock teacher calendar: %w", err)
	}

	rv, err = m.reservations.GetForUpdate(ctx, tx, reservationID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("reload reservation: %w", err)
	}
	if !rv.ActiveAt(now) {
		if rv.Status == model.ReservationStatusActive {
			if _, err := m.reservations.UpdateStatusIf(ctx, tx, reservationID, model.ReservationStatusActive, model.ReservationStatusExpired); err != nil {
				return model.Booking{}, fmt.Errorf("expire stale reservation: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				// The sweeper flips the row later; the caller still sees expired.
				m.logger.Warn("stale hold not marked expired", "reservation_id", reservationID, "err", err)
			}
		}
		return model.Booking{}, model.E(model.ErrorKindReservationExpired, "reservation expired before promotion; reserve again")
	}

	booking := model.Booking{
		ID:        uuid.NewString(),
		TeacherID: rv.TeacherID,
		StudentID: rv.StudentID,
		StartTime: rv.StartTime,
		EndTime:   rv.EndTime,
		Status:    model.BookingStatusPending,
		Notes:     meta.Notes,
	}
	if err := m.bookings.Insert(ctx, tx, &booking); err != nil {
		if storage.IsConflict(err) {
			return model.Booking{}, model.WrapE(model.ErrorKindSlotUnavailable, "interval already booked", err)
		}
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	if _, err := m.reservations.UpdateStatusIf(ctx, tx, reservationID, model.ReservationStatusActive, model.ReservationStatusPromoted); err != nil {
		return model.Booking{}, fmt.Errorf("mark reservation promoted: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"reservation_id": reservationID,
		"booking_id":     booking.ID,
		"teacher_id":     booking.TeacherID,
		"student_id":     booking.StudentID,
		"start_time":     booking.StartTime.UTC().Format(time.RFC3339),
		"end_time":       booking.EndTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Booking{}, fmt.Errorf("build event payload: %w", err)
	}
	if err := m.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   reservationID,
		EventType:     outbox.EventReservationPromoted,
		Payload:       payload,
	}); err != nil {
		return model.Booking{}, fmt.Errorf("write outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, fmt.Errorf("commit: %w", err)
	}

	m.stopTimer(reservationID)
	m.logger.Info("reservation promoted",
		"reservation_id", reservationID,
		"booking_id", booking.ID,
		"teacher_id", booking.TeacherID,
	)
	return booking, nil
}

func (m *Manager) scheduleExpiry(reservationID string, at time.Time) {
	d := time.Until(at)
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if t, ok := m.timers[reservationID]; ok {
		t.Stop()
	}
	m.timers[reservationID] = time.AfterFunc(d, func() {
		m.expireFromTimer(reservationID)
	})
}

func (m *Manager) expireFromTimer(reservationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Expire(ctx, reservationID); err != nil {
		// The sweeper and lazy expiry on read cover for a failed timer pass.
		m.logger.Warn("timer expiry failed", "reservation_id", reservationID, "err", err)
	}
	m.stopTimer(reservationID)
}

func (m *Manager) stopTimer(reservationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[reservationID]; ok {
		t.Stop()
		delete(m.timers, reservationID)
	}
}

// Shutdown stops all pending expiry timers. In-flight rows are handled by the
// sweeper or lazy expiry after restart.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}
