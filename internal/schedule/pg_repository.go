package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
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

// breakRecord is the JSONB shape breaks are stored in.
type breakRecord struct {
	StartMinutes int   `json:"start_minutes"`
	EndMinutes   int   `json:"end_minutes"`
	Days         []int `json:"days,omitempty"`
}

func encodeBreaks(breaks []Break) ([]byte, error) {
	records := make([]breakRecord, 0, len(breaks))
	for _, b := range breaks {
		rec := breakRecord{
			StartMinutes: int(b.Start / time.Minute),
			EndMinutes:   int(b.End / time.Minute),
		}
		for _, d := range b.Days {
			rec.Days = append(rec.Days, int(d))
		}
		records = append(records, rec)
	}
	return json.Marshal(records)
}

func decodeBreaks(raw []byte) ([]Break, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var records []breakRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode breaks: %w", err)
	}
	breaks := make([]Break, 0, len(records))
	for _, rec := range records {
		b := Break{
			Start: time.Duration(rec.StartMinutes) * time.Minute,
			End:   time.Duration(rec.EndMinutes) * time.Minute,
		}
		for _, d := range rec.Days {
			b.Days = append(b.Days, time.Weekday(d))
		}
		breaks = append(breaks, b)
	}
	return breaks, nil
}

func encodeDays(days []time.Weekday) []int32 {
	out := make([]int32, 0, len(days))
	for _, d := range days {
		out = append(out, int32(d))
	}
	return out
}

func decodeDays(raw []int32) []time.Weekday {
	out := make([]time.Weekday, 0, len(raw))
	for _, d := range raw {
		out = append(out, time.Weekday(d))
	}
	return out
}

func scanRule(row pgx.Row) (*AvailabilityRule, error) {
	var (
		r            AvailabilityRule
		days         []int32
		startMin     int
		endMin       int
		bufBeforeMin int
		bufAfterMin  int
		breaksRaw    []byte
	)

	err := row.Scan(
		&r.ID,
		&r.ResourceID,
		&r.Recurrence,
		&days,
		&startMin,
		&endMin,
		&bufBeforeMin,
		&bufAfterMin,
		&breaksRaw,
		&r.EffectiveFrom,
		&r.EffectiveUntil,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, db.Unavailable("scan availability rule", err)
	}

	r.Days = decodeDays(days)
	r.Start = time.Duration(startMin) * time.Minute
	r.End = time.Duration(endMin) * time.Minute
	r.BufferBefore = time.Duration(bufBeforeMin) * time.Minute
	r.BufferAfter = time.Duration(bufAfterMin) * time.Minute

	r.Breaks, err = decodeBreaks(breaksRaw)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

const ruleColumns = `id, resource_id, recurrence, days, start_minutes, end_minutes,
	buffer_before_minutes, buffer_after_minutes, breaks, effective_from, effective_until,
	created_at, updated_at`

func (r *PgRepository) CreateRule(ctx context.Context, rule AvailabilityRule) (*AvailabilityRule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}

	breaksRaw, err := encodeBreaks(rule.Breaks)
	if err != nil {
		return nil, fmt.Errorf("encode breaks: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_rules
			(id, resource_id, recurrence, days, start_minutes, end_minutes,
			 buffer_before_minutes, buffer_after_minutes, breaks, effective_from, effective_until,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING `+ruleColumns+`
	`,
		rule.ID,
		rule.ResourceID,
		rule.Recurrence,
		encodeDays(rule.Days),
		int(rule.Start/time.Minute),
		int(rule.End/time.Minute),
		int(rule.BufferBefore/time.Minute),
		int(rule.BufferAfter/time.Minute),
		breaksRaw,
		rule.EffectiveFrom,
		rule.EffectiveUntil,
	)

	return scanRule(row)
}

func (r *PgRepository) GetRuleByID(ctx context.Context, id uuid.UUID) (*AvailabilityRule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE id = $1
	`, id)
	return scanRule(row)
}

func (r *PgRepository) ListRulesForResource(ctx context.Context, resourceID uuid.UUID) ([]AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE resource_id = $1
		ORDER BY created_at
	`, resourceID)
	if err != nil {
		return nil, db.Unavailable("list availability rules", err)
	}
	defer rows.Close()

	var result []AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable("list availability rules", err)
	}
	return result, nil
}

func (r *PgRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_rules WHERE id = $1`, id)
	if err != nil {
		return db.Unavailable("delete availability rule", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func scanException(row pgx.Row) (*Exception, error) {
	var (
		ex       Exception
		startMin *int
		endMin   *int
	)

	err := row.Scan(
		&ex.ID,
		&ex.ResourceID,
		&ex.Date,
		&ex.Kind,
		&startMin,
		&endMin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, db.Unavailable("scan exception", err)
	}

	if startMin != nil && endMin != nil {
		ex.Window = Interval{
			Start: time.Duration(*startMin) * time.Minute,
			End:   time.Duration(*endMin) * time.Minute,
		}
	}
	return &ex, nil
}

func (r *PgRepository) CreateException(ctx context.Context, ex Exception) (*Exception, error) {
	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}

	var startMin, endMin *int
	if ex.Kind == ExceptionAddInterval {
		s := int(ex.Window.Start / time.Minute)
		e := int(ex.Window.End / time.Minute)
		startMin, endMin = &s, &e
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_exceptions (id, resource_id, date, kind, start_minutes, end_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, resource_id, date, kind, start_minutes, end_minutes
	`, ex.ID, ex.ResourceID, DayStart(ex.Date), ex.Kind, startMin, endMin)

	return scanException(row)
}

func (r *PgRepository) ListExceptions(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]Exception, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, resource_id, date, kind, start_minutes, end_minutes
		FROM availability_exceptions
		WHERE resource_id = $1
		  AND date >= $2
		  AND date < $3
		ORDER BY date
	`, resourceID, DayStart(from), to)
	if err != nil {
		return nil, db.Unavailable("list exceptions", err)
	}
	defer rows.Close()

	var result []Exception
	for rows.Next() {
		ex, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ex)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable("list exceptions", err)
	}
	return result, nil
}
