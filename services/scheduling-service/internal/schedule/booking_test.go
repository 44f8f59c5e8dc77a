package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/availability"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/outbox"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/restore"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage/storagetest"
)

func TestCancelRestoresClosedWindowOnce(t *testing.T) {
	pool := storagetest.Open(t)
	logger := discardLogger()
	windows := storage.NewWindowRepository(pool)
	bookings := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	availabilitySvc := NewAvailabilityService(pool, windows, bookings, logger)
	restorer := restore.NewRestorer(pool, windows, bookings, outboxRepo, logger)
	svc := NewBookingService(pool, bookings, outboxRepo, restorer, logger)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	win, err := availabilitySvc.Declare(ctx, "teacher-1", availability.Interval{Start: base, End: base.Add(time.Hour)}, "")
	if err != nil {
		t.Fatalf("declare: %v", err)
	}

	b := model.Booking{
		ID:        uuid.NewString(),
		TeacherID: "teacher-1",
		StudentID: "student-a",
		StartTime: base,
		EndTime:   base.Add(30 * time.Minute),
		Status:    model.BookingStatusPending,
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := bookings.Insert(ctx, tx, &b); err != nil {
		t.Fatalf("insert booking: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Teacher takes the window offline while the booking stands.
	if _, err := availabilitySvc.SetAvailable(ctx, win.ID, false); err != nil {
		t.Fatalf("close window: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, b.ID, "student request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.BookingStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	reopened, err := windows.Get(ctx, win.ID)
	if err != nil {
		t.Fatalf("reload window: %v", err)
	}
	if !reopened.IsAvailable {
		t.Fatalf("window not reopened after last blocking booking was cancelled")
	}

	// Cancelling again is a no-op and must not restore a second time.
	if _, err := svc.Cancel(ctx, b.ID, "student request"); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}

	var restoredEvents int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM outbox_events WHERE event_type = $1`, outbox.EventWindowRestored).Scan(&restoredEvents); err != nil {
		t.Fatalf("count restored events: %v", err)
	}
	if restoredEvents != 1 {
		t.Fatalf("window restored events = %d, want 1", restoredEvents)
	}
	var cancelledEvents int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM outbox_events WHERE event_type = $1`, outbox.EventBookingCancelled).Scan(&cancelledEvents); err != nil {
		t.Fatalf("count cancelled events: %v", err)
	}
	if cancelledEvents != 1 {
		t.Fatalf("booking cancelled events = %d, want 1", cancelledEvents)
	}

	final, err := windows.Get(ctx, win.ID)
	if err != nil {
		t.Fatalf("reload window: %v", err)
	}
	if got := strings.Count(final.Note, "reopened"); got != 1 {
		t.Fatalf("reopen notes = %d, want exactly 1 (note: %q)", got, final.Note)
	}
}
