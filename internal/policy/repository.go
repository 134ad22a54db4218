package policy

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPolicyNotFound  = errors.New("cancellation policy not found")
	ErrRequestNotFound = errors.New("cancellation request not found")
)

// Repository contains policy and cancellation-request storage interactions.
type Repository interface {
	CreatePolicy(ctx context.Context, p CancellationPolicy) (*CancellationPolicy, error)
	GetPolicyByID(ctx context.Context, id uuid.UUID) (*CancellationPolicy, error)
	ListPolicies(ctx context.Context) ([]CancellationPolicy, error)

	CreateRequest(ctx context.Context, req CancellationRequest) (*CancellationRequest, error)
	GetRequestByID(ctx context.Context, id uuid.UUID) (*CancellationRequest, error)

	// ResolveRequest transitions a request out of pending; the WHERE clause
	// on the previous status makes the transition race-safe.
	ResolveRequest(ctx context.Context, id uuid.UUID, to RequestStatus, processedBy string) (*CancellationRequest, error)
}
