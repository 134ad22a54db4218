package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// Active reports whether the appointment still occupies its window for
// conflict purposes. Only cancelled appointments free their interval.
func (s Status) Active() bool {
	return s != StatusCancelled
}

// ServiceType describes a bookable service: its duration drives slot
// generation, its price is captured on the appointment at booking time.
type ServiceType struct {
	ID        uuid.UUID
	Name      string
	Duration  time.Duration
	Price     int64 // cents
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID             uuid.UUID
	ResourceID     uuid.UUID
	PatientID      uuid.UUID
	ServiceTypeID  uuid.UUID
	Start          time.Time
	Duration       time.Duration
	Status         Status
	OriginalAmount int64 // price in cents at booking time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a Appointment) End() time.Time {
	return a.Start.Add(a.Duration)
}
