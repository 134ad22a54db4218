package schedule

import "time"

// DayAvailability holds the compiled free intervals for one date. Free may be
// empty for days with no matching rules or a block exception.
type DayAvailability struct {
	Date time.Time
	Free []Interval
}

// CompileRange expands recurring rules and date exceptions into per-day free
// intervals over [from, to). The result depends only on the inputs, never on
// the wall clock, so identical inputs always compile identically.
func CompileRange(rules []AvailabilityRule, exceptions []Exception, from, to time.Time) []DayAvailability {
	var out []DayAvailability
	for d := DayStart(from); d.Before(to); d = d.AddDate(0, 0, 1) {
		out = append(out, DayAvailability{
			Date: d,
			Free: CompileDay(rules, exceptions, d),
		})
	}
	return out
}

// CompileDay compiles the free intervals for a single date.
func CompileDay(rules []AvailabilityRule, exceptions []Exception, date time.Time) []Interval {
	date = DayStart(date)

	var addWindows []Interval
	for _, ex := range exceptions {
		if !DayStart(ex.Date).Equal(date) {
			continue
		}
		switch ex.Kind {
		case ExceptionBlock:
			// Block exceptions win over everything, including add_interval.
			return nil
		case ExceptionAddInterval:
			if !ex.Window.Empty() {
				addWindows = append(addWindows, ex.Window)
			}
		}
	}

	var candidates []Interval
	var matched []AvailabilityRule
	for _, r := range rules {
		if !ruleAppliesOn(r, date) {
			continue
		}
		matched = append(matched, r)
		candidates = append(candidates, Interval{Start: r.Start, End: r.End})
	}

	free := Merge(candidates)

	weekday := date.Weekday()
	for _, r := range matched {
		for _, b := range r.Breaks {
			if len(b.Days) > 0 && !containsWeekday(b.Days, weekday) {
				continue
			}
			free = SubtractAll(free, Interval{Start: b.Start, End: b.End})
		}
	}

	if len(addWindows) > 0 {
		free = Merge(append(free, addWindows...))
	}

	return free
}

func ruleAppliesOn(r AvailabilityRule, date time.Time) bool {
	if r.Recurrence == RecurrenceOneTime {
		return DayStart(r.EffectiveFrom).Equal(date)
	}

	if date.Before(DayStart(r.EffectiveFrom)) {
		return false
	}
	if r.EffectiveUntil != nil && !date.Before(DayStart(*r.EffectiveUntil)) {
		return false
	}
	return containsWeekday(r.Days, date.Weekday())
}

// EffectiveBuffers reports the buffer durations that apply to appointments on
// the given date: the widest buffers among the rules matching that day. Rules
// with different buffers may overlap on the same day; taking the maximum keeps
// the no-overlap guarantee conservative.
func EffectiveBuffers(rules []AvailabilityRule, date time.Time) (before, after time.Duration) {
	date = DayStart(date)
	for _, r := range rules {
		if !ruleAppliesOn(r, date) {
			continue
		}
		if r.BufferBefore > before {
			before = r.BufferBefore
		}
		if r.BufferAfter > after {
			after = r.BufferAfter
		}
	}
	return before, after
}
