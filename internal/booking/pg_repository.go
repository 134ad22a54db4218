package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmydbr9/EVMR-sub000/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanServiceType(row pgx.Row) (*ServiceType, error) {
	var (
		st          ServiceType
		durationMin int
	)

	err := row.Scan(
		&st.ID,
		&st.Name,
		&durationMin,
		&st.Price,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceTypeNotFound
		}
		return nil, db.Unavailable("scan service type", err)
	}

	st.Duration = time.Duration(durationMin) * time.Minute
	return &st, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a           Appointment
		durationMin int
	)

	err := row.Scan(
		&a.ID,
		&a.ResourceID,
		&a.PatientID,
		&a.ServiceTypeID,
		&a.Start,
		&durationMin,
		&a.Status,
		&a.OriginalAmount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, db.Unavailable("scan appointment", err)
	}

	a.Duration = time.Duration(durationMin) * time.Minute
	return &a, nil
}

const appointmentColumns = `id, resource_id, patient_id, service_type_id, start_time,
	duration_minutes, status, original_amount, created_at, updated_at`

func (r *PgRepository) GetServiceType(ctx context.Context, id uuid.UUID) (*ServiceType, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, price, created_at, updated_at
		FROM service_types
		WHERE id = $1
	`, id)
	return scanServiceType(row)
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveAppointments(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE resource_id = $1
		  AND status <> 'cancelled'
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`, resourceID, from, to)
	if err != nil {
		return nil, db.Unavailable("list active appointments", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable("list active appointments", err)
	}
	return result, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, resource_id, patient_id, service_type_id, start_time, duration_minutes,
			 status, original_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`,
		a.ID,
		a.ResourceID,
		a.PatientID,
		a.ServiceTypeID,
		a.Start,
		int(a.Duration/time.Minute),
		a.Status,
		a.OriginalAmount,
	)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ReplaceAppointment(ctx context.Context, oldID uuid.UUID, replacement Appointment) (*Appointment, error) {
	if replacement.ID == uuid.Nil {
		replacement.ID = uuid.New()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, db.Unavailable("begin reschedule tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status <> 'cancelled'
	`, oldID)
	if err != nil {
		return nil, db.Unavailable("cancel old appointment", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAppointmentNotFound
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, resource_id, patient_id, service_type_id, start_time, duration_minutes,
			 status, original_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`,
		replacement.ID,
		replacement.ResourceID,
		replacement.PatientID,
		replacement.ServiceTypeID,
		replacement.Start,
		int(replacement.Duration/time.Minute),
		replacement.Status,
		replacement.OriginalAmount,
	)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, db.Unavailable("commit reschedule tx", err)
	}
	return created, nil
}

func (r *PgRepository) FindOverdueScheduled(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND start_time < $1
	`, cutoff)
	if err != nil {
		return nil, db.Unavailable("find overdue scheduled", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable("find overdue scheduled", err)
	}
	return result, nil
}
