package policy

import (
	"context"
	"errors"

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

func scanPolicy(row pgx.Row) (*CancellationPolicy, error) {
	var (
		p       CancellationPolicy
		typeIDs []uuid.UUID
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&typeIDs,
		&p.Window.Value,
		&p.Window.Unit,
		&p.RefundPercent,
		&p.FallbackRefundPercent,
		&p.AutoApprove,
		&p.AllowRescheduling,
		&p.ReschedulingWindow.Value,
		&p.ReschedulingWindow.Unit,
		&p.ReschedulingFee,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, db.Unavailable("scan cancellation policy", err)
	}

	p.ServiceTypeIDs = typeIDs
	return &p, nil
}

func scanRequest(row pgx.Row) (*CancellationRequest, error) {
	var req CancellationRequest

	err := row.Scan(
		&req.ID,
		&req.AppointmentID,
		&req.RequestedAt,
		&req.Reason,
		&req.MatchedPolicyID,
		&req.RefundAmount,
		&req.Status,
		&req.ProcessedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, db.Unavailable("scan cancellation request", err)
	}

	return &req, nil
}

const policyColumns = `id, name, service_type_ids, window_value, window_unit,
	refund_percent, fallback_refund_percent, auto_approve, allow_rescheduling,
	resched_window_value, resched_window_unit, resched_fee, created_at, updated_at`

const requestColumns = `id, appointment_id, requested_at, reason, matched_policy_id,
	refund_amount, status, processed_by, created_at, updated_at`

func (r *PgRepository) CreatePolicy(ctx context.Context, p CancellationPolicy) (*CancellationPolicy, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO cancellation_policies
			(id, name, service_type_ids, window_value, window_unit,
			 refund_percent, fallback_refund_percent, auto_approve, allow_rescheduling,
			 resched_window_value, resched_window_unit, resched_fee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+policyColumns+`
	`,
		p.ID,
		p.Name,
		p.ServiceTypeIDs,
		p.Window.Value,
		p.Window.Unit,
		p.RefundPercent,
		p.FallbackRefundPercent,
		p.AutoApprove,
		p.AllowRescheduling,
		p.ReschedulingWindow.Value,
		p.ReschedulingWindow.Unit,
		p.ReschedulingFee,
	)

	return scanPolicy(row)
}

func (r *PgRepository) GetPolicyByID(ctx context.Context, id uuid.UUID) (*CancellationPolicy, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+policyColumns+`
		FROM cancellation_policies
		WHERE id = $1
	`, id)
	return scanPolicy(row)
}

func (r *PgRepository) ListPolicies(ctx context.Context) ([]CancellationPolicy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+policyColumns+`
		FROM cancellation_policies
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, db.Unavailable("list cancellation policies", err)
	}
	defer rows.Close()

	var result []CancellationPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable("list cancellation policies", err)
	}
	return result, nil
}

func (r *PgRepository) CreateRequest(ctx context.Context, req CancellationRequest) (*CancellationRequest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO cancellation_requests
			(id, appointment_id, requested_at, reason, matched_policy_id,
			 refund_amount, status, processed_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+requestColumns+`
	`,
		req.ID,
		req.AppointmentID,
		req.RequestedAt,
		req.Reason,
		req.MatchedPolicyID,
		req.RefundAmount,
		req.Status,
		req.ProcessedBy,
	)

	return scanRequest(row)
}

func (r *PgRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*CancellationRequest, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM cancellation_requests
		WHERE id = $1
	`, id)
	return scanRequest(row)
}

func (r *PgRepository) ResolveRequest(ctx context.Context, id uuid.UUID, to RequestStatus, processedBy string) (*CancellationRequest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE cancellation_requests
		SET status = $2,
		    processed_by = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+requestColumns+`
	`, id, to, processedBy)

	return scanRequest(row)
}
