package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdmydbr9/EVMR-sub000/internal/booking"
)

var (
	ErrNoPolicyConfigured = errors.New("no cancellation policy configured")
	ErrInvalidTransition  = errors.New("cancellation request is not pending")
)

// Service is the cancellation policy evaluator: the sole writer of
// CancellationRequest state. Appointment status changes go through the
// booking transaction manager.
type Service struct {
	repo     Repository
	bookings *booking.Service
	logger   *zap.Logger

	// Now is the injectable time source for lead-time computation.
	Now func() time.Time
}

func NewService(repo Repository, bookings *booking.Service, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		bookings: bookings,
		logger:   logger,
		Now:      time.Now,
	}
}

// RequestCancellation evaluates a cancellation against the matching policy.
// When the lead time clears the policy window and the policy auto-approves,
// the request is created approved and the appointment is cancelled in the
// same call; otherwise it is created pending for manual resolution.
func (s *Service) RequestCancellation(ctx context.Context, appointmentID uuid.UUID, reason string) (*CancellationRequest, error) {
	appt, err := s.bookings.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == booking.StatusCancelled {
		return nil, booking.ErrAlreadyCancelled
	}

	policies, err := s.repo.ListPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}

	matched := SelectPolicy(policies, appt.ServiceTypeID)
	if matched == nil {
		return nil, ErrNoPolicyConfigured
	}

	now := s.Now()
	leadTime := appt.Start.Sub(now)
	withinWindow := leadTime >= matched.Window.Duration()

	pct := matched.FallbackRefundPercent
	if withinWindow {
		pct = matched.RefundPercent
	}
	refund := appt.OriginalAmount * int64(pct) / 100

	req := CancellationRequest{
		AppointmentID:   appointmentID,
		RequestedAt:     now,
		Reason:          reason,
		MatchedPolicyID: matched.ID,
		RefundAmount:    refund,
		Status:          RequestPending,
	}

	autoApproved := withinWindow && matched.AutoApprove
	if autoApproved {
		req.Status = RequestApproved
	}

	created, err := s.repo.CreateRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create cancellation request: %w", err)
	}

	if autoApproved {
		if _, err := s.bookings.Cancel(ctx, appointmentID); err != nil {
			return nil, fmt.Errorf("cancel auto-approved appointment: %w", err)
		}
	}

	s.logger.Info("cancellation requested",
		zap.String("request_id", created.ID.String()),
		zap.String("appointment_id", appointmentID.String()),
		zap.String("policy", matched.Name),
		zap.Duration("lead_time", leadTime),
		zap.Int64("refund_amount", refund),
		zap.Bool("auto_approved", autoApproved),
	)
	return created, nil
}

// ResolveCancellation is the manual path out of pending. Approving cancels
// the appointment; rejecting leaves it scheduled. Resolved requests are
// terminal and cannot be re-opened.
func (s *Service) ResolveCancellation(ctx context.Context, requestID uuid.UUID, decision Decision, processedBy string) (*CancellationRequest, error) {
	req, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestPending {
		return nil, ErrInvalidTransition
	}

	var to RequestStatus
	switch decision {
	case DecisionApprove:
		to = RequestApproved
	case DecisionReject:
		to = RequestRejected
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	resolved, err := s.repo.ResolveRequest(ctx, requestID, to, processedBy)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			// Raced with another resolver after the pending check.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("resolve cancellation request: %w", err)
	}

	if to == RequestApproved {
		if _, err := s.bookings.Cancel(ctx, req.AppointmentID); err != nil {
			return nil, fmt.Errorf("cancel approved appointment: %w", err)
		}
	}

	s.logger.Info("cancellation resolved",
		zap.String("request_id", requestID.String()),
		zap.String("decision", string(decision)),
		zap.String("processed_by", processedBy),
	)
	return resolved, nil
}

// SelectPolicy picks the policy for a service type: the most specific match
// (fewest service types listed) wins, ties broken by oldest CreatedAt then
// lowest id; the catch-all policy applies only when nothing matches.
func SelectPolicy(policies []CancellationPolicy, serviceTypeID uuid.UUID) *CancellationPolicy {
	var best *CancellationPolicy
	for i := range policies {
		p := &policies[i]
		if !p.AppliesTo(serviceTypeID) {
			continue
		}
		if best == nil || morePreferred(p, best) {
			best = p
		}
	}
	if best != nil {
		return best
	}

	for i := range policies {
		p := &policies[i]
		if !p.CatchAll() {
			continue
		}
		if best == nil || morePreferred(p, best) {
			best = p
		}
	}
	return best
}

func morePreferred(a, b *CancellationPolicy) bool {
	if len(a.ServiceTypeIDs) != len(b.ServiceTypeIDs) {
		return len(a.ServiceTypeIDs) < len(b.ServiceTypeIDs)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
