package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
)

type WindowRepository struct {
	pool *db.Pool
}

func NewWindowRepository(pool *db.Pool) *WindowRepository {
	return &WindowRepository{pool: pool}
}

func (r *WindowRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const windowColumns = `id::text, teacher_id, start_time, end_time, is_available, note, created_at, updated_at`

func scanWindow(row pgx.Row) (model.AvailabilityWindow, error) {
	var w model.AvailabilityWindow
	err := row.Scan(&w.ID, &w.TeacherID, &w.StartTime, &w.EndTime, &w.IsAvailable, &w.Note, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (r *WindowRepository) Insert(ctx context.Context, tx pgx.Tx, w *model.AvailabilityWindow) error {
	return tx.QueryRow(ctx, `
		INSERT INTO availability_windows (id, teacher_id, start_time, end_time, is_available, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, w.ID, w.TeacherID, w.StartTime, w.EndTime, w.IsAvailable, w.Note).Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (r *WindowRepository) Get(ctx context.Context, id string) (model.AvailabilityWindow, error) {
	return scanWindow(r.pool.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
	`, id))
}

func (r *WindowRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.AvailabilityWindow, error) {
	return scanWindow(tx.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
		FOR UPDATE
	`, id))
}

// ListIntersecting returns every window (open or closed) for the teacher that
// intersects [from, to), ordered by start.
func (r *WindowRepository) ListIntersecting(ctx context.Context, q Querier, teacherID string, from, to time.Time) ([]model.AvailabilityWindow, error) {
	return r.list(ctx, q, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE teacher_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, teacherID, from, to)
}

// ListOpenIntersecting returns only is_available windows intersecting [from, to).
func (r *WindowRepository) ListOpenIntersecting(ctx context.Context, q Querier, teacherID string, from, to time.Time) ([]model.AvailabilityWindow, error) {
	return r.list(ctx, q, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE teacher_id = $1 AND is_available AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, teacherID, from, to)
}

// ListClosedIntersecting returns closed windows intersecting [from, to),
// locked for update; used by restoration after a booking cancellation.
func (r *WindowRepository) ListClosedIntersecting(ctx context.Context, tx pgx.Tx, teacherID string, from, to time.Time) ([]model.AvailabilityWindow, error) {
	return r.list(ctx, tx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE teacher_id = $1 AND NOT is_available AND start_time < $3 AND end_time > $2
		ORDER BY start_time
		FOR UPDATE
	`, teacherID, from, to)
}

func (r *WindowRepository) SetAvailable(ctx context.Context, tx pgx.Tx, id string, available bool) (model.AvailabilityWindow, error) {
	return scanWindow(tx.QueryRow(ctx, `
		UPDATE availability_windows
		SET is_available = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+windowColumns+`
	`, id, available))
}

// AppendNote adds an audit line to the window's note field.
func (r *WindowRepository) AppendNote(ctx context.Context, tx pgx.Tx, id string, note string) error {
	_, err := tx.Exec(ctx, `
		UPDATE availability_windows
		SET note = CASE WHEN note = '' THEN $2 ELSE note || E'\n' || $2 END,
			updated_at = now()
		WHERE id = $1
	`, id, note)
	return err
}

func (r *WindowRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM availability_windows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *WindowRepository) list(ctx context.Context, q Querier, sql string, args ...any) ([]model.AvailabilityWindow, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
