package policy

import (
	"time"

	"github.com/google/uuid"
)

type WindowUnit string

const (
	UnitHours WindowUnit = "hours"
	UnitDays  WindowUnit = "days"
)

// Window is a lead-time threshold, e.g. {24, hours} or {2, days}.
type Window struct {
	Value int
	Unit  WindowUnit
}

func (w Window) Duration() time.Duration {
	switch w.Unit {
	case UnitDays:
		return time.Duration(w.Value) * 24 * time.Hour
	default:
		return time.Duration(w.Value) * time.Hour
	}
}

// CancellationPolicy drives refund computation and auto-approval for
// cancellation requests. An empty ServiceTypeIDs set makes it the catch-all
// policy, matched only when no specific policy applies.
type CancellationPolicy struct {
	ID                    uuid.UUID
	Name                  string
	ServiceTypeIDs        []uuid.UUID
	Window                Window
	RefundPercent         int // applied when lead time >= Window
	FallbackRefundPercent int // applied when lead time < Window
	AutoApprove           bool
	AllowRescheduling     bool
	ReschedulingWindow    Window
	ReschedulingFee       int64 // cents
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (p CancellationPolicy) AppliesTo(serviceTypeID uuid.UUID) bool {
	for _, id := range p.ServiceTypeIDs {
		if id == serviceTypeID {
			return true
		}
	}
	return false
}

func (p CancellationPolicy) CatchAll() bool {
	return len(p.ServiceTypeIDs) == 0
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// CancellationRequest records one cancellation attempt against an
// appointment. MatchedPolicyID and RefundAmount are derived at creation and
// immutable afterwards; status is pending until resolved, or approved
// immediately when auto-approval fires.
type CancellationRequest struct {
	ID              uuid.UUID
	AppointmentID   uuid.UUID
	RequestedAt     time.Time
	Reason          string
	MatchedPolicyID uuid.UUID
	RefundAmount    int64 // cents
	Status          RequestStatus
	ProcessedBy     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
