package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/sdmydbr9/EVMR-sub000/internal/redis"
	"github.com/sdmydbr9/EVMR-sub000/internal/schedule"
)

var (
	ErrSlotConflict     = errors.New("requested time conflicts with availability or an existing appointment")
	ErrResourceBusy     = errors.New("resource is currently being booked, please retry")
	ErrAlreadyCancelled = errors.New("appointment is already cancelled")
)

// ScheduleSource provides the availability inputs slot validation needs.
// *schedule.PgRepository satisfies it.
type ScheduleSource interface {
	ListRulesForResource(ctx context.Context, resourceID uuid.UUID) ([]schedule.AvailabilityRule, error)
	ListExceptions(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]schedule.Exception, error)
}

// Service is the booking transaction manager: the sole writer of appointment
// status. Every mutating operation runs inside the per-resource lock, spanning
// slot recomputation, validation, and the appointment write.
type Service struct {
	repo        Repository
	schedules   ScheduleSource
	locker      redisclient.Locker
	granularity time.Duration
	logger      *zap.Logger

	// Now is the injectable time source; tests pin it to fixed instants.
	Now func() time.Time
}

func NewService(repo Repository, schedules ScheduleSource, locker redisclient.Locker, granularity time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		schedules:   schedules,
		locker:      locker,
		granularity: granularity,
		logger:      logger,
		Now:         time.Now,
	}
}

// GetSlots returns the bookable start times for a resource over [from, to).
// It takes no lock: staleness is acceptable for display and every start is
// re-validated under the lock at booking time.
func (s *Service) GetSlots(ctx context.Context, resourceID uuid.UUID, from, to time.Time, serviceTypeID uuid.UUID) ([]time.Time, error) {
	svcType, err := s.repo.GetServiceType(ctx, serviceTypeID)
	if err != nil {
		return nil, fmt.Errorf("load service type: %w", err)
	}

	rules, exceptions, booked, err := s.loadDayState(ctx, resourceID, from, to, uuid.Nil)
	if err != nil {
		return nil, err
	}

	days := schedule.CompileRange(rules, exceptions, from, to)
	return schedule.Candidates(days, rules, booked, svcType.Duration, s.granularity), nil
}

// Book validates and commits a new appointment. The slot recomputation,
// conflict check, and insert form one critical section per resource, so two
// concurrent bookings for overlapping times cannot both succeed.
func (s *Service) Book(ctx context.Context, resourceID, patientID, serviceTypeID uuid.UUID, start time.Time) (*Appointment, error) {
	svcType, err := s.repo.GetServiceType(ctx, serviceTypeID)
	if err != nil {
		return nil, fmt.Errorf("load service type: %w", err)
	}

	var created *Appointment

	err = s.locker.WithResourceLock(ctx, resourceID, func(lockCtx context.Context) error {
		if err := s.validateStart(lockCtx, resourceID, start, svcType.Duration, uuid.Nil); err != nil {
			return err
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			ResourceID:     resourceID,
			PatientID:      patientID,
			ServiceTypeID:  serviceTypeID,
			Start:          start,
			Duration:       svcType.Duration,
			Status:         StatusScheduled,
			OriginalAmount: svcType.Price,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrResourceBusy
		}
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("resource_id", resourceID.String()),
		zap.Time("start", start),
	)
	return created, nil
}

// Cancel transitions an appointment to cancelled. Cancelling an already
// cancelled appointment is a no-op, not an error.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return appt, nil
	}

	var cancelled *Appointment

	err = s.locker.WithResourceLock(ctx, appt.ResourceID, func(lockCtx context.Context) error {
		current, err := s.repo.GetAppointment(lockCtx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusCancelled {
			cancelled = current
			return nil
		}

		updated, err := s.repo.UpdateAppointmentStatus(lockCtx, id, current.Status, StatusCancelled)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		cancelled = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrResourceBusy
		}
		return nil, err
	}

	s.logger.Info("appointment cancelled", zap.String("appointment_id", id.String()))
	return cancelled, nil
}

// Reschedule validates newStart exactly as Book would, excluding the moving
// appointment from the conflict set, then swaps old for new atomically. On
// validation failure the original appointment is left untouched.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	var created *Appointment

	err = s.locker.WithResourceLock(ctx, appt.ResourceID, func(lockCtx context.Context) error {
		if err := s.validateStart(lockCtx, appt.ResourceID, newStart, appt.Duration, id); err != nil {
			return err
		}

		replacement, err := s.repo.ReplaceAppointment(lockCtx, id, Appointment{
			ResourceID:     appt.ResourceID,
			PatientID:      appt.PatientID,
			ServiceTypeID:  appt.ServiceTypeID,
			Start:          newStart,
			Duration:       appt.Duration,
			Status:         StatusScheduled,
			OriginalAmount: appt.OriginalAmount,
		})
		if err != nil {
			return fmt.Errorf("replace appointment: %w", err)
		}

		created = replacement
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrResourceBusy
		}
		return nil, err
	}

	s.logger.Info("appointment rescheduled",
		zap.String("old_appointment_id", id.String()),
		zap.String("new_appointment_id", created.ID.String()),
		zap.Time("new_start", newStart),
	)
	return created, nil
}

// Get retrieves an appointment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

// MarkOverdueNoShows flips scheduled appointments whose start passed more
// than grace ago to no-show. Intended to be called by the sweep worker.
func (s *Service) MarkOverdueNoShows(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.Now().Add(-grace)
	overdue, err := s.repo.FindOverdueScheduled(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, appt := range overdue {
		err := s.locker.WithResourceLock(ctx, appt.ResourceID, func(lockCtx context.Context) error {
			_, err := s.repo.UpdateAppointmentStatus(lockCtx, appt.ID, StatusScheduled, StatusNoShow)
			return err
		})
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, redisclient.ErrLockNotAcquired) {
				// Raced with a cancel or a concurrent writer; skip.
				continue
			}
			s.logger.Warn("failed to mark no-show",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		marked++
	}
	return marked, nil
}

// validateStart recomputes the day's candidate slots and checks the requested
// start against them and against the buffer-expanded intervals of existing
// appointments. exclude removes one appointment from the conflict set (the
// one being rescheduled).
func (s *Service) validateStart(ctx context.Context, resourceID uuid.UUID, start time.Time, duration time.Duration, exclude uuid.UUID) error {
	day := schedule.DayStart(start)
	next := day.AddDate(0, 0, 1)

	rules, exceptions, booked, err := s.loadDayState(ctx, resourceID, day, next, exclude)
	if err != nil {
		return err
	}

	days := schedule.CompileRange(rules, exceptions, day, next)
	candidates := schedule.Candidates(days, rules, booked, duration, s.granularity)

	found := false
	for _, c := range candidates {
		if c.Equal(start) {
			found = true
			break
		}
	}
	if !found {
		return ErrSlotConflict
	}

	before, after := schedule.EffectiveBuffers(rules, day)
	reqEnd := start.Add(duration)
	for _, b := range booked {
		expandedStart := b.Start.Add(-before)
		expandedEnd := b.Start.Add(b.Duration).Add(after)
		if start.Before(expandedEnd) && expandedStart.Before(reqEnd) {
			return ErrSlotConflict
		}
	}

	return nil
}

func (s *Service) loadDayState(ctx context.Context, resourceID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]schedule.AvailabilityRule, []schedule.Exception, []schedule.Booked, error) {
	rules, err := s.schedules.ListRulesForResource(ctx, resourceID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list rules: %w", err)
	}

	exceptions, err := s.schedules.ListExceptions(ctx, resourceID, from, to)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list exceptions: %w", err)
	}

	appts, err := s.repo.ListActiveAppointments(ctx, resourceID, from, to)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list appointments: %w", err)
	}

	var booked []schedule.Booked
	for _, a := range appts {
		if a.ID == exclude {
			continue
		}
		booked = append(booked, schedule.Booked{Start: a.Start, Duration: a.Duration})
	}

	return rules, exceptions, booked, nil
}
