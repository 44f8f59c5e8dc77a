package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/storage"
)

// Sweeper is the safety net behind the per-reservation timers: it marks
// overdue active holds expired in batches, so holds orphaned by a crash or a
// failed timer pass still get released.
type Sweeper struct {
	pool         *db.Pool
	reservations *storage.ReservationRepository
	logger       *slog.Logger
	interval     time.Duration
	batchSize    int
}

func NewSweeper(pool *db.Pool, reservations *storage.ReservationRepository, logger *slog.Logger, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		pool:         pool,
		reservations: reservations,
		logger:       logger,
		interval:     interval,
		batchSize:    batchSize,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("reservation sweeper started", "interval", s.interval.String(), "batch_size", s.batchSize)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reservation sweeper stopped")
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "err", err)
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids, err := s.reservations.ExpireDue(ctx, tx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if len(ids) > 0 {
		s.logger.Info("expired overdue reservations", "count", len(ids))
	}
	return nil
}
