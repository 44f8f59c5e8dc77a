package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tutorslot/tutorslot/libs/db"
	"github.com/tutorslot/tutorslot/services/scheduling-service/internal/model"
)

type ReservationRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	StudentID       string
	IdempotencyKey  string
	ReservationID   string
	StatusCode      int
	ResponsePayload []byte
}

func NewReservationRepository(pool *db.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const reservationColumns = `id::text, teacher_id, student_id, start_time, end_time, status, expires_at, created_at`

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var rv model.Reservation
	err := row.Scan(&rv.ID, &rv.TeacherID, &rv.StudentID, &rv.StartTime, &rv.EndTime, &rv.Status, &rv.ExpiresAt, &rv.CreatedAt)
	return rv, err
}

func (r *ReservationRepository) Insert(ctx context.Context, tx pgx.Tx, rv *model.Reservation) error {
	return tx.QueryRow(ctx, `
		INSERT INTO reservations (id, teacher_id, student_id, start_time, end_time, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, rv.ID, rv.TeacherID, rv.StudentID, rv.StartTime, rv.EndTime, rv.Status, rv.ExpiresAt).Scan(&rv.CreatedAt)
}

func (r *ReservationRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	return scanReservation(r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id))
}

func (r *ReservationRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Reservation, error) {
	return scanReservation(tx.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
		FOR UPDATE
	`, id))
}

// UpdateStatusIf moves a reservation from one status to another and reports
// whether the transition happened. Callers use it to make cancel/expire races
// idempotent: the losing side simply sees false.
func (r *ReservationRepository) UpdateStatusIf(ctx context.Context, tx pgx.Tx, id string, from, to model.ReservationStatus) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE reservations
		SET status = $3
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CancelActiveByStudent releases any active hold the student still has and
// returns the released ids so the manager can drop their expiry timers.
func (r *ReservationRepository) CancelActiveByStudent(ctx context.Context, tx pgx.Tx, studentID string) ([]string, error) {
	rows, err := tx.Query(ctx, `
		UPDATE reservations
		SET status = 'cancelled'
		WHERE student_id = $1 AND status = 'active'
		RETURNING id::text
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExpireOverdueByTeacher flips overdue active rows to expired before a new
// hold is attempted, so the partial exclusion constraint on active rows
// reflects logical reality.
func (r *ReservationRepository) ExpireOverdueByTeacher(ctx context.Context, tx pgx.Tx, teacherID string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE reservations
		SET status = 'expired'
		WHERE teacher_id = $1 AND status = 'active' AND expires_at <= $2
	`, teacherID, now)
	return err
}

// ListActiveOverlapping returns non-expired active holds overlapping [from, to).
// The expires_at predicate applies lazy expiry even to rows the sweeper has
// not reached yet.
func (r *ReservationRepository) ListActiveOverlapping(ctx context.Context, q Querier, teacherID string, from, to time.Time, now time.Time) ([]model.Reservation, error) {
	rows, err := q.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE teacher_id = $1
			AND status = 'active'
			AND expires_at > $4
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, teacherID, from, to, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		rv, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ExpireDue is the sweeper's batch pass over overdue holds. SKIP LOCKED keeps
// concurrent sweeps and foreground expiry from contending.
func (r *ReservationRepository) ExpireDue(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]string, error) {
	rows, err := tx.Query(ctx, `
		UPDATE reservations
		SET status = 'expired'
		WHERE id IN (
			SELECT id FROM reservations
			WHERE status = 'active' AND expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id::text
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ReservationRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, studentID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, studentID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reservation_idempotency_keys (student_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (student_id, idempotency_key) DO NOTHING
	`, studentID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, studentID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *ReservationRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, studentID, key, reservationID string, statusCode int, response []byte) error {
	var resID any
	if reservationID != "" {
		resID = reservationID
	}
	_, err := tx.Exec(ctx, `
		UPDATE reservation_idempotency_keys
		SET reservation_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE student_id = $1 AND idempotency_key = $2
	`, studentID, key, resID, statusCode, response)
	return err
}

func (r *ReservationRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, studentID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT student_id,
			idempotency_key,
			COALESCE(reservation_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM reservation_idempotency_keys
		WHERE student_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, studentID, key).Scan(
		&rec.StudentID,
		&rec.IdempotencyKey,
		&rec.ReservationID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
