package schedule

import "time"

// Booked is an existing appointment seen by the slot generator. Only the
// occupied window matters here; status filtering happens at the caller.
type Booked struct {
	Start    time.Time
	Duration time.Duration
}

// Buffers are the mandatory gaps reserved around booked appointments.
type Buffers struct {
	Before time.Duration
	After  time.Duration
}

// DayCandidates discretizes one day's free intervals into bookable start
// times. Each booked appointment is expanded by the buffers and subtracted
// first; the remaining intervals are then walked from their start in steps of
// granularity, keeping starts where the full service duration still fits.
func DayCandidates(day DayAvailability, booked []Booked, buf Buffers, serviceDuration, granularity time.Duration) []time.Time {
	if serviceDuration <= 0 || granularity <= 0 {
		return nil
	}

	midnight := DayStart(day.Date)
	free := day.Free

	for _, b := range booked {
		if !DayStart(b.Start).Equal(midnight) {
			continue
		}
		offset := b.Start.Sub(midnight)
		cut := Interval{
			Start: offset - buf.Before,
			End:   offset + b.Duration + buf.After,
		}
		if cut.Start < 0 {
			cut.Start = 0
		}
		if cut.End > dayLength {
			cut.End = dayLength
		}
		free = SubtractAll(free, cut)
	}

	var out []time.Time
	for _, iv := range free {
		for t := iv.Start; t+serviceDuration <= iv.End; t += granularity {
			out = append(out, midnight.Add(t))
		}
	}
	return out
}

// Candidates runs DayCandidates over a compiled range, applying the widest
// buffers of the rules in force on each day.
func Candidates(days []DayAvailability, rules []AvailabilityRule, booked []Booked, serviceDuration, granularity time.Duration) []time.Time {
	var out []time.Time
	for _, day := range days {
		before, after := EffectiveBuffers(rules, day.Date)
		buf := Buffers{Before: before, After: after}
		out = append(out, DayCandidates(day, booked, buf, serviceDuration, granularity)...)
	}
	return out
}
