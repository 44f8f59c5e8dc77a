package schedule

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/availability"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage/storagetest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeclareRejectsOverlappingWindow(t *testing.T) {
	pool := storagetest.Open(t)
	svc := NewAvailabilityService(pool, storage.NewWindowRepository(pool), storage.NewBookingRepository(pool), discardLogger())
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Hour).Add(48 * time.Hour)
	if _, err := svc.Declare(ctx, "teacher-1", availability.Interval{Start: base, End: base.Add(2 * time.Hour)}, ""); err != nil {
		t.Fatalf("declare: %v", err)
	}

	_, err := svc.Declare(ctx, "teacher-1", availability.Interval{Start: base.Add(time.Hour), End: base.Add(3 * time.Hour)}, "")
	if !model.IsKind(err, model.ErrorKindOverlap) {
		t.Fatalf("overlapping declare: got %v, want overlap", err)
	}

	// Touching end and start is not an overlap.
	if _, err := svc.Declare(ctx, "teacher-1", availability.Interval{Start: base.Add(2 * time.Hour), End: base.Add(3 * time.Hour)}, ""); err != nil {
		t.Fatalf("adjacent declare: %v", err)
	}

	// Another teacher's calendar is independent.
	if _, err := svc.Declare(ctx, "teacher-2", availability.Interval{Start: base, End: base.Add(2 * time.Hour)}, ""); err != nil {
		t.Fatalf("other teacher declare: %v", err)
	}
}
