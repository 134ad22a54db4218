package api

import (
	"time"

	"github.com/google/uuid"
)

type BookAppointmentRequest struct {
	ResourceID    string    `json:"resource_id" validate:"required,uuid"`
	PatientID     string    `json:"patient_id" validate:"required,uuid"`
	ServiceTypeID string    `json:"service_type_id" validate:"required,uuid"`
	Start         time.Time `json:"start" validate:"required"`
}

type RescheduleAppointmentRequest struct {
	NewStart time.Time `json:"new_start" validate:"required"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	ResourceID     uuid.UUID `json:"resource_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ServiceTypeID  uuid.UUID `json:"service_type_id"`
	Start          time.Time `json:"start"`
	EndTime        time.Time `json:"end"`
	Status         string    `json:"status"`
	OriginalAmount int64     `json:"original_amount"`
}

type SlotsResponse struct {
	ResourceID uuid.UUID   `json:"resource_id"`
	Slots      []time.Time `json:"slots"`
}

type BreakRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
	Days  []int  `json:"days" validate:"dive,min=0,max=6"`
}

type CreateRuleRequest struct {
	ResourceID          string         `json:"resource_id" validate:"required,uuid"`
	Recurrence          string         `json:"recurrence" validate:"required,oneof=weekly custom one-time"`
	Days                []int          `json:"days" validate:"dive,min=0,max=6"`
	Start               string         `json:"start" validate:"required"`
	End                 string         `json:"end" validate:"required"`
	BufferBeforeMinutes int            `json:"buffer_before_minutes" validate:"min=0"`
	BufferAfterMinutes  int            `json:"buffer_after_minutes" validate:"min=0"`
	Breaks              []BreakRequest `json:"breaks" validate:"dive"`
	EffectiveFrom       string         `json:"effective_from" validate:"required"`
	EffectiveUntil      string         `json:"effective_until,omitempty"`
}

type RuleResponse struct {
	ID                  uuid.UUID `json:"id"`
	ResourceID          uuid.UUID `json:"resource_id"`
	Recurrence          string    `json:"recurrence"`
	Days                []int     `json:"days,omitempty"`
	Start               string    `json:"start"`
	End                 string    `json:"end"`
	BufferBeforeMinutes int       `json:"buffer_before_minutes"`
	BufferAfterMinutes  int       `json:"buffer_after_minutes"`
	EffectiveFrom       string    `json:"effective_from"`
	EffectiveUntil      string    `json:"effective_until,omitempty"`
}

type CreateExceptionRequest struct {
	ResourceID string `json:"resource_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required"`
	Kind       string `json:"kind" validate:"required,oneof=block add_interval"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
}

type ExceptionResponse struct {
	ID         uuid.UUID `json:"id"`
	ResourceID uuid.UUID `json:"resource_id"`
	Date       string    `json:"date"`
	Kind       string    `json:"kind"`
	Start      string    `json:"start,omitempty"`
	End        string    `json:"end,omitempty"`
}

type CreatePolicyRequest struct {
	Name                    string   `json:"name" validate:"required"`
	ServiceTypeIDs          []string `json:"service_type_ids" validate:"dive,uuid"`
	WindowValue             int      `json:"window_value" validate:"min=0"`
	WindowUnit              string   `json:"window_unit" validate:"required,oneof=hours days"`
	RefundPercent           int      `json:"refund_percent" validate:"min=0,max=100"`
	FallbackRefundPercent   int      `json:"fallback_refund_percent" validate:"min=0,max=100"`
	AutoApprove             bool     `json:"auto_approve"`
	AllowRescheduling       bool     `json:"allow_rescheduling"`
	ReschedulingWindowValue int      `json:"rescheduling_window_value" validate:"min=0"`
	ReschedulingWindowUnit  string   `json:"rescheduling_window_unit" validate:"omitempty,oneof=hours days"`
	ReschedulingFee         int64    `json:"rescheduling_fee" validate:"min=0"`
}

type PolicyResponse struct {
	ID                    uuid.UUID   `json:"id"`
	Name                  string      `json:"name"`
	ServiceTypeIDs        []uuid.UUID `json:"service_type_ids,omitempty"`
	WindowValue           int         `json:"window_value"`
	WindowUnit            string      `json:"window_unit"`
	RefundPercent         int         `json:"refund_percent"`
	FallbackRefundPercent int         `json:"fallback_refund_percent"`
	AutoApprove           bool        `json:"auto_approve"`
	AllowRescheduling     bool        `json:"allow_rescheduling"`
	ReschedulingFee       int64       `json:"rescheduling_fee"`
}

type RequestCancellationRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,uuid"`
	Reason        string `json:"reason" validate:"max=1000"`
}

type ResolveCancellationRequest struct {
	Decision    string `json:"decision" validate:"required,oneof=approve reject"`
	ProcessedBy string `json:"processed_by" validate:"required"`
}

type CancellationRequestResponse struct {
	ID              uuid.UUID `json:"id"`
	AppointmentID   uuid.UUID `json:"appointment_id"`
	RequestedAt     time.Time `json:"requested_at"`
	Reason          string    `json:"reason,omitempty"`
	MatchedPolicyID uuid.UUID `json:"matched_policy_id"`
	RefundAmount    int64     `json:"refund_amount"`
	Status          string    `json:"status"`
	ProcessedBy     *string   `json:"processed_by,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
