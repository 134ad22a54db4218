package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdmydbr9/EVMR-sub000/internal/booking"
	"github.com/sdmydbr9/EVMR-sub000/internal/schedule"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type passLocker struct{}

func (passLocker) WithResourceLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type emptySchedules struct{}

func (emptySchedules) ListRulesForResource(context.Context, uuid.UUID) ([]schedule.AvailabilityRule, error) {
	return nil, nil
}

func (emptySchedules) ListExceptions(context.Context, uuid.UUID, time.Time, time.Time) ([]schedule.Exception, error) {
	return nil, nil
}

// bookingStore backs a real booking.Service; appointments are inserted
// directly so no availability rules are needed.
type bookingStore struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]booking.Appointment
}

func newBookingStore() *bookingStore {
	return &bookingStore{appointments: make(map[uuid.UUID]booking.Appointment)}
}

func (s *bookingStore) GetServiceType(context.Context, uuid.UUID) (*booking.ServiceType, error) {
	return nil, booking.ErrServiceTypeNotFound
}

func (s *bookingStore) GetAppointment(_ context.Context, id uuid.UUID) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	return &a, nil
}

func (s *bookingStore) ListActiveAppointments(context.Context, uuid.UUID, time.Time, time.Time) ([]booking.Appointment, error) {
	return nil, nil
}

func (s *bookingStore) CreateAppointment(_ context.Context, a booking.Appointment) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.appointments[a.ID] = a
	return &a, nil
}

func (s *bookingStore) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to booking.Status) (*booking.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok || a.Status != from {
		return nil, booking.ErrAppointmentNotFound
	}
	a.Status = to
	s.appointments[id] = a
	return &a, nil
}

func (s *bookingStore) ReplaceAppointment(context.Context, uuid.UUID, booking.Appointment) (*booking.Appointment, error) {
	return nil, booking.ErrAppointmentNotFound
}

func (s *bookingStore) FindOverdueScheduled(context.Context, time.Time) ([]booking.Appointment, error) {
	return nil, nil
}

type policyStore struct {
	mu       sync.Mutex
	policies map[uuid.UUID]CancellationPolicy
	requests map[uuid.UUID]CancellationRequest
}

func newPolicyStore() *policyStore {
	return &policyStore{
		policies: make(map[uuid.UUID]CancellationPolicy),
		requests: make(map[uuid.UUID]CancellationRequest),
	}
}

func (s *policyStore) CreatePolicy(_ context.Context, p CancellationPolicy) (*CancellationPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.policies[p.ID] = p
	return &p, nil
}

func (s *policyStore) GetPolicyByID(_ context.Context, id uuid.UUID) (*CancellationPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	return &p, nil
}

func (s *policyStore) ListPolicies(_ context.Context) ([]CancellationPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CancellationPolicy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	return out, nil
}

func (s *policyStore) CreateRequest(_ context.Context, req CancellationRequest) (*CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	s.requests[req.ID] = req
	return &req, nil
}

func (s *policyStore) GetRequestByID(_ context.Context, id uuid.UUID) (*CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &req, nil
}

func (s *policyStore) ResolveRequest(_ context.Context, id uuid.UUID, to RequestStatus, processedBy string) (*CancellationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != RequestPending {
		return nil, ErrRequestNotFound
	}
	req.Status = to
	req.ProcessedBy = &processedBy
	s.requests[id] = req
	return &req, nil
}

type policyFixture struct {
	svc           *Service
	store         *policyStore
	bookings      *bookingStore
	serviceTypeID uuid.UUID
}

func newPolicyFixture(t *testing.T) *policyFixture {
	t.Helper()

	bookings := newBookingStore()
	bookingSvc := booking.NewService(bookings, emptySchedules{}, passLocker{}, 30*time.Minute, zap.NewNop())
	bookingSvc.Now = func() time.Time { return testNow }

	store := newPolicyStore()
	svc := NewService(store, bookingSvc, zap.NewNop())
	svc.Now = func() time.Time { return testNow }

	return &policyFixture{
		svc:           svc,
		store:         store,
		bookings:      bookings,
		serviceTypeID: uuid.New(),
	}
}

func (f *policyFixture) addAppointment(t *testing.T, startsIn time.Duration, amount int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.bookings.appointments[id] = booking.Appointment{
		ID:             id,
		ResourceID:     uuid.New(),
		PatientID:      uuid.New(),
		ServiceTypeID:  f.serviceTypeID,
		Start:          testNow.Add(startsIn),
		Duration:       30 * time.Minute,
		Status:         booking.StatusScheduled,
		OriginalAmount: amount,
	}
	return id
}

func (f *policyFixture) addPolicy(t *testing.T, p CancellationPolicy) CancellationPolicy {
	t.Helper()
	created, err := f.store.CreatePolicy(context.Background(), p)
	if err != nil {
		t.Fatalf("CreatePolicy: %v", err)
	}
	return *created
}

func standardPolicy() CancellationPolicy {
	return CancellationPolicy{
		Name:                  "Standard",
		Window:                Window{Value: 24, Unit: UnitHours},
		RefundPercent:         100,
		FallbackRefundPercent: 0,
		AutoApprove:           true,
		CreatedAt:             testNow.Add(-30 * 24 * time.Hour),
	}
}

func TestRequestCancellationAutoApproved(t *testing.T) {
	f := newPolicyFixture(t)
	f.addPolicy(t, standardPolicy())
	apptID := f.addAppointment(t, 48*time.Hour, 6500)

	req, err := f.svc.RequestCancellation(context.Background(), apptID, "schedule change")
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}
	if req.Status != RequestApproved {
		t.Fatalf("status = %s, want approved", req.Status)
	}
	if req.RefundAmount != 6500 {
		t.Fatalf("refund = %d, want full 6500", req.RefundAmount)
	}

	appt, _ := f.bookings.GetAppointment(context.Background(), apptID)
	if appt.Status != booking.StatusCancelled {
		t.Fatalf("appointment status = %s, want cancelled", appt.Status)
	}
}

func TestRequestCancellationInsideWindow(t *testing.T) {
	f := newPolicyFixture(t)
	f.addPolicy(t, standardPolicy())
	apptID := f.addAppointment(t, 2*time.Hour, 6500)

	req, err := f.svc.RequestCancellation(context.Background(), apptID, "")
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}
	if req.Status != RequestPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}
	if req.RefundAmount != 0 {
		t.Fatalf("refund = %d, want fallback 0", req.RefundAmount)
	}

	appt, _ := f.bookings.GetAppointment(context.Background(), apptID)
	if appt.Status != booking.StatusScheduled {
		t.Fatalf("appointment status = %s, must stay scheduled until resolved", appt.Status)
	}
}

func TestRequestCancellationWindowBoundary(t *testing.T) {
	f := newPolicyFixture(t)
	f.addPolicy(t, standardPolicy())

	// Lead time exactly equal to the window counts as outside it.
	apptID := f.addAppointment(t, 24*time.Hour, 10000)
	req, err := f.svc.RequestCancellation(context.Background(), apptID, "")
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}
	if req.Status != RequestApproved || req.RefundAmount != 10000 {
		t.Fatalf("at-boundary request: status=%s refund=%d, want approved/10000", req.Status, req.RefundAmount)
	}
}

func TestRequestCancellationPartialRefund(t *testing.T) {
	f := newPolicyFixture(t)
	p := standardPolicy()
	p.Name = "Procedure"
	p.Window = Window{Value: 2, Unit: UnitDays}
	p.RefundPercent = 80
	p.FallbackRefundPercent = 25
	p.AutoApprove = false
	f.addPolicy(t, p)

	outside := f.addAppointment(t, 72*time.Hour, 10000)
	req, err := f.svc.RequestCancellation(context.Background(), outside, "")
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}
	if req.Status != RequestPending {
		t.Fatalf("manual policy must not auto-approve, got %s", req.Status)
	}
	if req.RefundAmount != 8000 {
		t.Fatalf("refund = %d, want 8000", req.RefundAmount)
	}

	inside := f.addAppointment(t, 12*time.Hour, 10000)
	req, err = f.svc.RequestCancellation(context.Background(), inside, "")
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}
	if req.RefundAmount != 2500 {
		t.Fatalf("fallback refund = %d, want 2500", req.RefundAmount)
	}
}

func TestRequestCancellationNoPolicy(t *testing.T) {
	f := newPolicyFixture(t)
	apptID := f.addAppointment(t, 48*time.Hour, 6500)

	_, err := f.svc.RequestCancellation(context.Background(), apptID, "")
	if !errors.Is(err, ErrNoPolicyConfigured) {
		t.Fatalf("err = %v, want ErrNoPolicyConfigured", err)
	}
}

func TestRequestCancellationAlreadyCancelled(t *testing.T) {
	f := newPolicyFixture(t)
	f.addPolicy(t, standardPolicy())
	apptID := f.addAppointment(t, 48*time.Hour, 6500)

	a := f.bookings.appointments[apptID]
	a.Status = booking.StatusCancelled
	f.bookings.appointments[apptID] = a

	_, err := f.svc.RequestCancellation(context.Background(), apptID, "")
	if !errors.Is(err, booking.ErrAlreadyCancelled) {
		t.Fatalf("err = %v, want ErrAlreadyCancelled", err)
	}
}

func TestResolveCancellationApprove(t *testing.T) {
	f := newPolicyFixture(t)
	f.addPolicy(t, standardPolicy())
	apptID := f.addAppointment(t, 2*time.Hour, 6500)

	req, err := f.svc.RequestCancellation(context.Background(), apptID, "")
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}

	resolved, err := f.svc.ResolveCancellation(context.Background(), req.ID, DecisionApprove, "dr.lane")
	if err != nil {
		t.Fatalf("ResolveCancellation: %v", err)
	}
	if resolved.Status != RequestApproved {
		t.Fatalf("status = %s, want approved", resolved.Status)
	}
	if resolved.ProcessedBy == nil || *resolved.ProcessedBy != "dr.lane" {
		t.Fatalf("processed_by = %v, want dr.lane", resolved.ProcessedBy)
	}

	appt, _ := f.bookings.GetAppointment(context.Background(), apptID)
	if appt.Status != booking.StatusCancelled {
		t.Fatalf("appointment status = %s, want cancelled", appt.Status)
	}
}

func TestResolveCancellationReject(t *testing.T) {
	f := newPolicyFixture(t)
	f.addPolicy(t, standardPolicy())
	apptID := f.addAppointment(t, 2*time.Hour, 6500)

	req, err := f.svc.RequestCancellation(context.Background(), apptID, "")
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}

	resolved, err := f.svc.ResolveCancellation(context.Background(), req.ID, DecisionReject, "dr.lane")
	if err != nil {
		t.Fatalf("ResolveCancellation: %v", err)
	}
	if resolved.Status != RequestRejected {
		t.Fatalf("status = %s, want rejected", resolved.Status)
	}

	appt, _ := f.bookings.GetAppointment(context.Background(), apptID)
	if appt.Status != booking.StatusScheduled {
		t.Fatalf("rejected request must leave the appointment scheduled, got %s", appt.Status)
	}
}

func TestResolveCancellationTerminal(t *testing.T) {
	f := newPolicyFixture(t)
	f.addPolicy(t, standardPolicy())
	apptID := f.addAppointment(t, 2*time.Hour, 6500)

	req, err := f.svc.RequestCancellation(context.Background(), apptID, "")
	if err != nil {
		t.Fatalf("RequestCancellation: %v", err)
	}
	if _, err := f.svc.ResolveCancellation(context.Background(), req.ID, DecisionReject, "dr.lane"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	_, err = f.svc.ResolveCancellation(context.Background(), req.ID, DecisionApprove, "dr.lane")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSelectPolicy(t *testing.T) {
	target := uuid.New()
	other := uuid.New()
	base := testNow.Add(-60 * 24 * time.Hour)

	catchAll := CancellationPolicy{ID: uuid.New(), Name: "catch-all", CreatedAt: base}
	broad := CancellationPolicy{ID: uuid.New(), Name: "broad", ServiceTypeIDs: []uuid.UUID{target, other}, CreatedAt: base}
	narrow := CancellationPolicy{ID: uuid.New(), Name: "narrow", ServiceTypeIDs: []uuid.UUID{target}, CreatedAt: base.Add(time.Hour)}
	unrelated := CancellationPolicy{ID: uuid.New(), Name: "unrelated", ServiceTypeIDs: []uuid.UUID{other}, CreatedAt: base}

	tests := []struct {
		name     string
		policies []CancellationPolicy
		want     string
	}{
		{"most specific wins", []CancellationPolicy{catchAll, broad, narrow}, "narrow"},
		{"order independent", []CancellationPolicy{narrow, broad, catchAll}, "narrow"},
		{"catch-all only when nothing matches", []CancellationPolicy{catchAll, unrelated}, "catch-all"},
		{"broad beats catch-all", []CancellationPolicy{catchAll, broad}, "broad"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectPolicy(tc.policies, target)
			if got == nil {
				t.Fatal("got nil policy")
			}
			if got.Name != tc.want {
				t.Fatalf("selected %q, want %q", got.Name, tc.want)
			}
		})
	}

	if got := SelectPolicy([]CancellationPolicy{unrelated}, target); got != nil {
		t.Fatalf("no applicable policy: got %q, want nil", got.Name)
	}
}

func TestSelectPolicyTieBreak(t *testing.T) {
	target := uuid.New()
	older := CancellationPolicy{ID: uuid.New(), Name: "older", ServiceTypeIDs: []uuid.UUID{target}, CreatedAt: testNow.Add(-48 * time.Hour)}
	newer := CancellationPolicy{ID: uuid.New(), Name: "newer", ServiceTypeIDs: []uuid.UUID{target}, CreatedAt: testNow.Add(-24 * time.Hour)}

	got := SelectPolicy([]CancellationPolicy{newer, older}, target)
	if got == nil || got.Name != "older" {
		t.Fatalf("equal specificity must prefer the older policy, got %v", got)
	}
}
