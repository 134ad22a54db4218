package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains the availability reads and writes needed by the
// booking engine.
type Repository interface {
	CreateRule(ctx context.Context, rule AvailabilityRule) (*AvailabilityRule, error)
	GetRuleByID(ctx context.Context, id uuid.UUID) (*AvailabilityRule, error)
	ListRulesForResource(ctx context.Context, resourceID uuid.UUID) ([]AvailabilityRule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error

	CreateException(ctx context.Context, ex Exception) (*Exception, error)
	ListExceptions(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]Exception, error)
}
