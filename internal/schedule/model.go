package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRule = errors.New("invalid availability rule")
var ErrRuleNotFound = errors.New("availability rule not found")

type RecurrenceType string

const (
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceCustom  RecurrenceType = "custom"
	RecurrenceOneTime RecurrenceType = "one-time"
)

// Break is a recurring gap inside a rule's open hours, e.g. lunch.
// Days limits the break to certain weekdays; an empty set applies it to every
// day the parent rule matches.
type Break struct {
	Start time.Duration
	End   time.Duration
	Days  []time.Weekday
}

// AvailabilityRule defines recurring open hours for one resource.
// Start and End are wall-clock offsets from midnight. For one-time rules the
// single applicable date is EffectiveFrom's date.
type AvailabilityRule struct {
	ID             uuid.UUID
	ResourceID     uuid.UUID
	Recurrence     RecurrenceType
	Days           []time.Weekday
	Start          time.Duration
	End            time.Duration
	BufferBefore   time.Duration
	BufferAfter    time.Duration
	Breaks         []Break
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ExceptionKind string

const (
	ExceptionBlock       ExceptionKind = "block"
	ExceptionAddInterval ExceptionKind = "add_interval"
)

// Exception is a date-specific override. A block exception empties the whole
// day regardless of matching rules; an add_interval exception unions Window
// into the day's availability.
type Exception struct {
	ID         uuid.UUID
	ResourceID uuid.UUID
	Date       time.Time
	Kind       ExceptionKind
	Window     Interval
}

const dayLength = 24 * time.Hour

// ValidateRule rejects malformed rules at creation time. Cross-midnight hours
// are rejected here so downstream slot generation never probes past midnight.
func ValidateRule(r AvailabilityRule) error {
	if r.ResourceID == uuid.Nil {
		return fmt.Errorf("%w: resource id is required", ErrInvalidRule)
	}

	switch r.Recurrence {
	case RecurrenceWeekly, RecurrenceCustom, RecurrenceOneTime:
	default:
		return fmt.Errorf("%w: unknown recurrence type %q", ErrInvalidRule, r.Recurrence)
	}

	if r.Start < 0 || r.End > dayLength || r.Start >= r.End {
		return fmt.Errorf("%w: hours must satisfy 0 <= start < end <= 24h", ErrInvalidRule)
	}

	if r.Recurrence != RecurrenceOneTime && len(r.Days) == 0 {
		return fmt.Errorf("%w: days of week must not be empty", ErrInvalidRule)
	}
	for _, d := range r.Days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: day of week %d out of range", ErrInvalidRule, d)
		}
	}

	if r.BufferBefore < 0 || r.BufferAfter < 0 {
		return fmt.Errorf("%w: buffers must be non-negative", ErrInvalidRule)
	}

	hours := Interval{Start: r.Start, End: r.End}
	for i, b := range r.Breaks {
		win := Interval{Start: b.Start, End: b.End}
		if win.Empty() {
			return fmt.Errorf("%w: break %d is empty", ErrInvalidRule, i)
		}
		if !hours.Contains(win) {
			return fmt.Errorf("%w: break %d lies outside the rule's hours", ErrInvalidRule, i)
		}
		for _, d := range b.Days {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("%w: break %d day of week %d out of range", ErrInvalidRule, i, d)
			}
		}
	}

	if r.EffectiveUntil != nil && !r.EffectiveUntil.After(r.EffectiveFrom) {
		return fmt.Errorf("%w: effective window is empty", ErrInvalidRule)
	}

	return nil
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

// DayStart truncates t to midnight in its own location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
