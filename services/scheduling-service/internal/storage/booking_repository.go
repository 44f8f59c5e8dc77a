package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const bookingColumns = `id::text, teacher_id, student_id, start_time, end_time, status, notes, cancelled_at, cancellation_reason, created_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.TeacherID, &b.StudentID, &b.StartTime, &b.EndTime, &b.Status, &b.Notes, &b.CancelledAt, &b.CancelReason, &b.CreatedAt)
	return b, err
}

func (r *BookingRepository) Insert(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	return tx.QueryRow(ctx, `
		INSERT INTO bookings (id, teacher_id, student_id, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, b.ID, b.TeacherID, b.StudentID, b.StartTime, b.EndTime, b.Status, b.Notes).Scan(&b.CreatedAt)
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id))
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.BookingStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, id string, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// ListBlockingOverlapping returns bookings in a blocking status
// (pending/confirmed/scheduled) that overlap [from, to) for the teacher.
func (r *BookingRepository) ListBlockingOverlapping(ctx context.Context, q Querier, teacherID string, from, to time.Time) ([]model.Booking, error) {
	return r.list(ctx, q, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE teacher_id = $1
			AND status IN ('pending', 'confirmed', 'scheduled')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, teacherID, from, to)
}

func (r *BookingRepository) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, r.pool, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE teacher_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, teacherID, limit)
}

func (r *BookingRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, r.pool, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE student_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, studentID, limit)
}

func (r *BookingRepository) list(ctx context.Context, q Querier, sql string, args ...any) ([]model.Booking, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
