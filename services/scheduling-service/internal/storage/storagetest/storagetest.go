// Package storagetest wires tests that need a real Postgres instance.
package storagetest

import (
	"context"
	"os"
	"testing"

	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
)

// Open connects to the database named by DATABASE_URL, applies the embedded
// migrations and clears the domain tables so tests start from a known state.
// Tests calling it are skipped when DATABASE_URL is unset.
func Open(t *testing.T) *db.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := storage.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	_, err = pool.Exec(ctx, `
		TRUNCATE availability_windows, bookings, reservations,
			reservation_idempotency_keys, outbox_events, inbox_events
	`)
	if err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	return pool
}
