package reservation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/availability"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/conflict"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/outbox"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage/storagetest"
)

func newTestManager(t *testing.T, pool *db.Pool, ttl time.Duration) (*Manager, *storage.WindowRepository, *storage.ReservationRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	windows := storage.NewWindowRepository(pool)
	bookings := storage.NewBookingRepository(pool)
	reservations := storage.NewReservationRepository(pool)
	checker := conflict.NewChecker(pool, windows, bookings, reservations)
	m := NewManager(pool, reservations, bookings, outbox.NewRepository(pool), checker, logger, ttl)
	t.Cleanup(m.Shutdown)
	return m, windows, reservations
}

func openWindow(t *testing.T, pool *db.Pool, windows *storage.WindowRepository, teacherID string, start, end time.Time) model.AvailabilityWindow {
	t.Helper()
	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	w := model.AvailabilityWindow{
		ID:          uuid.NewString(),
		TeacherID:   teacherID,
		StartTime:   start,
		EndTime:     end,
		IsAvailable: true,
	}
	if err := windows.Insert(ctx, tx, &w); err != nil {
		t.Fatalf("insert window: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return w
}

func TestCreateHoldExcludesOverlapUntilReleased(t *testing.T) {
	pool := storagetest.Open(t)
	m, windows, _ := newTestManager(t, pool, 0)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	openWindow(t, pool, windows, "teacher-1", start, start.Add(2*time.Hour))

	slot := availability.Interval{Start: start, End: start.Add(30 * time.Minute)}
	held, replayed, err := m.Create(ctx, "teacher-1", "student-a", slot, "")
	if err != nil {
		t.Fatalf("first hold: %v", err)
	}
	if replayed {
		t.Fatalf("fresh hold reported as replay")
	}

	overlapping := availability.Interval{Start: start.Add(15 * time.Minute), End: start.Add(45 * time.Minute)}
	if _, _, err := m.Create(ctx, "teacher-1", "student-b", overlapping, ""); !model.IsKind(err, model.ErrorKindSlotUnavailable) {
		t.Fatalf("overlapping hold: got %v, want slot_unavailable", err)
	}

	// A slot that only touches the hold is still free.
	adjacent := availability.Interval{Start: start.Add(30 * time.Minute), End: start.Add(time.Hour)}
	if _, _, err := m.Create(ctx, "teacher-1", "student-b", adjacent, ""); err != nil {
		t.Fatalf("adjacent hold: %v", err)
	}

	if err := m.Cancel(ctx, held.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, _, err := m.Create(ctx, "teacher-1", "student-b", overlapping, ""); err != nil {
		t.Fatalf("hold after release: %v", err)
	}
}

func TestCreateHoldReplaysOnIdempotencyKey(t *testing.T) {
	pool := storagetest.Open(t)
	m, windows, _ := newTestManager(t, pool, 0)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	openWindow(t, pool, windows, "teacher-1", start, start.Add(time.Hour))
	slot := availability.Interval{Start: start, End: start.Add(30 * time.Minute)}

	first, replayed, err := m.Create(ctx, "teacher-1", "student-a", slot, "checkout-1")
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if replayed {
		t.Fatalf("first attempt reported as replay")
	}

	second, replayed, err := m.Create(ctx, "teacher-1", "student-a", slot, "checkout-1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !replayed {
		t.Fatalf("retry not reported as replay")
	}
	if second.ID != first.ID {
		t.Fatalf("retry returned a new hold: %s != %s", second.ID, first.ID)
	}
}

func TestRenewAfterDeadlineMarksExpired(t *testing.T) {
	pool := storagetest.Open(t)
	m, windows, reservations := newTestManager(t, pool, 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	openWindow(t, pool, windows, "teacher-1", start, start.Add(time.Hour))
	slot := availability.Interval{Start: start, End: start.Add(30 * time.Minute)}

	held, _, err := m.Create(ctx, "teacher-1", "student-a", slot, "")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	// Keep the row active past its deadline so renewal takes the lazy path.
	m.stopTimer(held.ID)
	time.Sleep(80 * time.Millisecond)

	if _, err := m.Renew(ctx, held.ID); !model.IsKind(err, model.ErrorKindReservationExpired) {
		t.Fatalf("renew after deadline: got %v, want reservation_expired", err)
	}
	got, err := reservations.Get(ctx, held.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != model.ReservationStatusExpired {
		t.Fatalf("status = %s, want expired to be persisted", got.Status)
	}
}
