package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrServiceTypeNotFound = errors.New("service type not found")
)

// Repository contains all appointment storage interactions needed by the
// booking transaction manager.
type Repository interface {
	GetServiceType(ctx context.Context, id uuid.UUID) (*ServiceType, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListActiveAppointments returns non-cancelled appointments for the
	// resource whose start falls in [from, to).
	ListActiveAppointments(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]Appointment, error)

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// ReplaceAppointment cancels the old appointment and inserts the
	// replacement in a single transaction, so a reschedule never leaves
	// partial state behind.
	ReplaceAppointment(ctx context.Context, oldID uuid.UUID, replacement Appointment) (*Appointment, error)

	// FindOverdueScheduled returns appointments still scheduled whose start
	// is before the cutoff. Used by the no-show sweep worker.
	FindOverdueScheduled(ctx context.Context, cutoff time.Time) ([]Appointment, error)
}
