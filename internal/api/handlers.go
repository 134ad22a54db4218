package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sdmydbr9/EVMR-sub000/internal/booking"
	"github.com/sdmydbr9/EVMR-sub000/internal/db"
	"github.com/sdmydbr9/EVMR-sub000/internal/policy"
	"github.com/sdmydbr9/EVMR-sub000/internal/schedule"
)

var validate = validator.New()

func getSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resourceID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_resource_id", "id must be a valid UUID")
			return
		}

		q := r.URL.Query()
		from, err := time.Parse("2006-01-02", q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		to, err := time.Parse("2006-01-02", q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}
		serviceTypeID, err := uuid.Parse(q.Get("service_type_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_type_id", "service_type_id must be a valid UUID")
			return
		}

		slots, err := svc.GetSlots(r.Context(), resourceID, from, to, serviceTypeID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		if slots == nil {
			slots = []time.Time{}
		}
		writeJSON(w, http.StatusOK, SlotsResponse{ResourceID: resourceID, Slots: slots})
	}
}

func bookAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		resourceID, _ := uuid.Parse(req.ResourceID)
		patientID, _ := uuid.Parse(req.PatientID)
		serviceTypeID, _ := uuid.Parse(req.ServiceTypeID)

		appt, err := svc.Book(r.Context(), resourceID, patientID, serviceTypeID, req.Start)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, req.NewStart)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func createRuleHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRuleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		rule, err := ruleFromRequest(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_rule_fields", err.Error())
			return
		}

		if err := schedule.ValidateRule(*rule); err != nil {
			handleDomainError(w, err)
			return
		}

		created, err := repo.CreateRule(r.Context(), *rule)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRuleResponse(created))
	}
}

func getRuleHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_rule_id", "id must be a valid UUID")
			return
		}

		rule, err := repo.GetRuleByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}

func deleteRuleHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_rule_id", "id must be a valid UUID")
			return
		}

		if err := repo.DeleteRule(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func createExceptionHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateExceptionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		resourceID, _ := uuid.Parse(req.ResourceID)
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		ex := schedule.Exception{
			ResourceID: resourceID,
			Date:       date,
			Kind:       schedule.ExceptionKind(req.Kind),
		}
		if ex.Kind == schedule.ExceptionAddInterval {
			start, err := parseClock(req.Start)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start", "start: "+err.Error())
				return
			}
			end, err := parseClock(req.End)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end", "end: "+err.Error())
				return
			}
			ex.Window = schedule.Interval{Start: start, End: end}
			if ex.Window.Empty() {
				writeError(w, http.StatusBadRequest, "invalid_window", "add_interval requires start < end")
				return
			}
		}

		created, err := repo.CreateException(r.Context(), ex)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := ExceptionResponse{
			ID:         created.ID,
			ResourceID: created.ResourceID,
			Date:       created.Date.Format("2006-01-02"),
			Kind:       string(created.Kind),
		}
		if created.Kind == schedule.ExceptionAddInterval {
			resp.Start = formatClock(created.Window.Start)
			resp.End = formatClock(created.Window.End)
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func createPolicyHandler(repo policy.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePolicyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		p := policy.CancellationPolicy{
			Name:                  req.Name,
			Window:                policy.Window{Value: req.WindowValue, Unit: policy.WindowUnit(req.WindowUnit)},
			RefundPercent:         req.RefundPercent,
			FallbackRefundPercent: req.FallbackRefundPercent,
			AutoApprove:           req.AutoApprove,
			AllowRescheduling:     req.AllowRescheduling,
			ReschedulingFee:       req.ReschedulingFee,
		}
		if req.ReschedulingWindowUnit != "" {
			p.ReschedulingWindow = policy.Window{
				Value: req.ReschedulingWindowValue,
				Unit:  policy.WindowUnit(req.ReschedulingWindowUnit),
			}
		}
		for _, raw := range req.ServiceTypeIDs {
			id, _ := uuid.Parse(raw)
			p.ServiceTypeIDs = append(p.ServiceTypeIDs, id)
		}

		created, err := repo.CreatePolicy(r.Context(), p)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPolicyResponse(created))
	}
}

func getPolicyHandler(repo policy.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_policy_id", "id must be a valid UUID")
			return
		}

		p, err := repo.GetPolicyByID(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPolicyResponse(p))
	}
}

func requestCancellationHandler(svc *policy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RequestCancellationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		appointmentID, _ := uuid.Parse(req.AppointmentID)

		created, err := svc.RequestCancellation(r.Context(), appointmentID, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toCancellationResponse(created))
	}
}

func resolveCancellationHandler(svc *policy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_id", "id must be a valid UUID")
			return
		}

		var req ResolveCancellationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		resolved, err := svc.ResolveCancellation(r.Context(), id, policy.Decision(req.Decision), req.ProcessedBy)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toCancellationResponse(resolved))
	}
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrServiceTypeNotFound):
		writeError(w, http.StatusNotFound, "service_type_not_found", err.Error())
	case errors.Is(err, schedule.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule_not_found", err.Error())
	case errors.Is(err, policy.ErrPolicyNotFound):
		writeError(w, http.StatusNotFound, "policy_not_found", err.Error())
	case errors.Is(err, policy.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "cancellation_request_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, booking.ErrResourceBusy):
		writeError(w, http.StatusConflict, "resource_busy", "resource is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, policy.ErrNoPolicyConfigured):
		writeError(w, http.StatusConflict, "no_policy_configured", err.Error())
	case errors.Is(err, policy.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, schedule.ErrInvalidRule):
		writeError(w, http.StatusUnprocessableEntity, "invalid_rule", err.Error())
	case errors.Is(err, db.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage is unavailable, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		ResourceID:     a.ResourceID,
		PatientID:      a.PatientID,
		ServiceTypeID:  a.ServiceTypeID,
		Start:          a.Start,
		EndTime:        a.End(),
		Status:         string(a.Status),
		OriginalAmount: a.OriginalAmount,
	}
}

func toRuleResponse(r *schedule.AvailabilityRule) RuleResponse {
	resp := RuleResponse{
		ID:                  r.ID,
		ResourceID:          r.ResourceID,
		Recurrence:          string(r.Recurrence),
		Start:               formatClock(r.Start),
		End:                 formatClock(r.End),
		BufferBeforeMinutes: int(r.BufferBefore / time.Minute),
		BufferAfterMinutes:  int(r.BufferAfter / time.Minute),
		EffectiveFrom:       r.EffectiveFrom.Format("2006-01-02"),
	}
	for _, d := range r.Days {
		resp.Days = append(resp.Days, int(d))
	}
	if r.EffectiveUntil != nil {
		resp.EffectiveUntil = r.EffectiveUntil.Format("2006-01-02")
	}
	return resp
}

func toPolicyResponse(p *policy.CancellationPolicy) PolicyResponse {
	return PolicyResponse{
		ID:                    p.ID,
		Name:                  p.Name,
		ServiceTypeIDs:        p.ServiceTypeIDs,
		WindowValue:           p.Window.Value,
		WindowUnit:            string(p.Window.Unit),
		RefundPercent:         p.RefundPercent,
		FallbackRefundPercent: p.FallbackRefundPercent,
		AutoApprove:           p.AutoApprove,
		AllowRescheduling:     p.AllowRescheduling,
		ReschedulingFee:       p.ReschedulingFee,
	}
}

func toCancellationResponse(r *policy.CancellationRequest) CancellationRequestResponse {
	return CancellationRequestResponse{
		ID:              r.ID,
		AppointmentID:   r.AppointmentID,
		RequestedAt:     r.RequestedAt,
		Reason:          r.Reason,
		MatchedPolicyID: r.MatchedPolicyID,
		RefundAmount:    r.RefundAmount,
		Status:          string(r.Status),
		ProcessedBy:     r.ProcessedBy,
	}
}

func ruleFromRequest(req CreateRuleRequest) (*schedule.AvailabilityRule, error) {
	resourceID, _ := uuid.Parse(req.ResourceID)

	start, err := parseClock(req.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseClock(req.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	effectiveFrom, err := time.Parse("2006-01-02", req.EffectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("effective_from must be YYYY-MM-DD")
	}

	var effectiveUntil *time.Time
	if req.EffectiveUntil != "" {
		t, err := time.Parse("2006-01-02", req.EffectiveUntil)
		if err != nil {
			return nil, fmt.Errorf("effective_until must be YYYY-MM-DD")
		}
		effectiveUntil = &t
	}

	rule := schedule.AvailabilityRule{
		ResourceID:     resourceID,
		Recurrence:     schedule.RecurrenceType(req.Recurrence),
		Days:           toWeekdays(req.Days),
		Start:          start,
		End:            end,
		BufferBefore:   time.Duration(req.BufferBeforeMinutes) * time.Minute,
		BufferAfter:    time.Duration(req.BufferAfterMinutes) * time.Minute,
		EffectiveFrom:  effectiveFrom,
		EffectiveUntil: effectiveUntil,
	}

	for i, b := range req.Breaks {
		bStart, err := parseClock(b.Start)
		if err != nil {
			return nil, fmt.Errorf("break %d start: %w", i, err)
		}
		bEnd, err := parseClock(b.End)
		if err != nil {
			return nil, fmt.Errorf("break %d end: %w", i, err)
		}
		rule.Breaks = append(rule.Breaks, schedule.Break{
			Start: bStart,
			End:   bEnd,
			Days:  toWeekdays(b.Days),
		})
	}

	return &rule, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("must be HH:MM")
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func toWeekdays(days []int) []time.Weekday {
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, time.Weekday(d))
	}
	return out
}
