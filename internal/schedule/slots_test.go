package schedule

import (
	"testing"
	"time"
)

func containsTime(ts []time.Time, want time.Time) bool {
	for _, t := range ts {
		if t.Equal(want) {
			return true
		}
	}
	return false
}

func TestDayCandidatesClinicWeek(t *testing.T) {
	rule := weekdayRule()
	rule.BufferBefore = 15 * time.Minute
	rule.BufferAfter = 15 * time.Minute

	day := DayAvailability{
		Date: monday(),
		Free: CompileDay([]AvailabilityRule{rule}, nil, monday()),
	}

	slots := DayCandidates(day, nil, Buffers{Before: rule.BufferBefore, After: rule.BufferAfter},
		30*time.Minute, 30*time.Minute)

	if len(slots) == 0 {
		t.Fatal("expected candidates on a Monday")
	}
	if !slots[0].Equal(monday().Add(9 * time.Hour)) {
		t.Fatalf("first candidate = %v, want 09:00", slots[0])
	}
	if containsTime(slots, monday().Add(12*time.Hour)) {
		t.Fatal("12:00 must be absent (lunch break)")
	}
	if containsTime(slots, monday().Add(12*time.Hour+30*time.Minute)) {
		t.Fatal("12:30 must be absent (lunch break)")
	}
	if !containsTime(slots, monday().Add(11*time.Hour+30*time.Minute)) {
		t.Fatal("11:30 should fit before the break")
	}
	if !containsTime(slots, monday().Add(13*time.Hour)) {
		t.Fatal("13:00 should be the first afternoon candidate")
	}
	last := slots[len(slots)-1]
	if !last.Equal(monday().Add(16*time.Hour + 30*time.Minute)) {
		t.Fatalf("last candidate = %v, want 16:30", last)
	}
}

func TestDayCandidatesBufferedBooking(t *testing.T) {
	rule := weekdayRule()
	day := DayAvailability{
		Date: monday(),
		Free: CompileDay([]AvailabilityRule{rule}, nil, monday()),
	}

	booked := []Booked{
		{Start: monday().Add(10 * time.Hour), Duration: 30 * time.Minute},
	}
	buf := Buffers{Before: 15 * time.Minute, After: 15 * time.Minute}

	slots := DayCandidates(day, booked, buf, 30*time.Minute, 30*time.Minute)

	// The booking occupies 10:00-10:30; buffers expand it to 09:45-10:45.
	if containsTime(slots, monday().Add(10*time.Hour)) {
		t.Fatal("10:00 must be blocked by the booking itself")
	}
	if containsTime(slots, monday().Add(10*time.Hour+30*time.Minute)) {
		t.Fatal("10:30 must be blocked by the after-buffer")
	}
	if !containsTime(slots, monday().Add(10*time.Hour+45*time.Minute)) {
		t.Fatal("10:45 should be bookable right after the buffer")
	}
	if !containsTime(slots, monday().Add(9*time.Hour)) {
		t.Fatal("09:00 should still fit before the before-buffer")
	}
}

func TestDayCandidatesShortInterval(t *testing.T) {
	day := DayAvailability{
		Date: monday(),
		Free: []Interval{{Start: 9 * time.Hour, End: 9*time.Hour + 20*time.Minute}},
	}

	slots := DayCandidates(day, nil, Buffers{}, 30*time.Minute, 30*time.Minute)
	if len(slots) != 0 {
		t.Fatalf("interval shorter than the service duration must yield no candidates, got %v", slots)
	}
}

func TestDayCandidatesIgnoresOtherDayBookings(t *testing.T) {
	rule := weekdayRule()
	day := DayAvailability{
		Date: monday(),
		Free: CompileDay([]AvailabilityRule{rule}, nil, monday()),
	}

	booked := []Booked{
		{Start: monday().AddDate(0, 0, 1).Add(10 * time.Hour), Duration: 30 * time.Minute},
	}

	withBooking := DayCandidates(day, booked, Buffers{}, 30*time.Minute, 30*time.Minute)
	without := DayCandidates(day, nil, Buffers{}, 30*time.Minute, 30*time.Minute)
	if len(withBooking) != len(without) {
		t.Fatalf("a booking on another day must not affect candidates: %d vs %d", len(withBooking), len(without))
	}
}

func TestDayCandidatesNeverCrossMidnight(t *testing.T) {
	day := DayAvailability{
		Date: monday(),
		Free: []Interval{{Start: 23 * time.Hour, End: 24 * time.Hour}},
	}

	slots := DayCandidates(day, nil, Buffers{}, 45*time.Minute, 30*time.Minute)
	nextMidnight := monday().AddDate(0, 0, 1)
	for _, s := range slots {
		if s.Add(45 * time.Minute).After(nextMidnight) {
			t.Fatalf("candidate %v runs past midnight", s)
		}
	}
	if len(slots) != 1 || !slots[0].Equal(monday().Add(23*time.Hour)) {
		t.Fatalf("expected only 23:00, got %v", slots)
	}
}

func TestCandidatesAppliesPerDayBuffers(t *testing.T) {
	rule := weekdayRule()
	rule.Breaks = nil
	rule.BufferBefore = 15 * time.Minute
	rule.BufferAfter = 15 * time.Minute

	rules := []AvailabilityRule{rule}
	days := CompileRange(rules, nil, monday(), monday().AddDate(0, 0, 1))
	booked := []Booked{
		{Start: monday().Add(10 * time.Hour), Duration: 30 * time.Minute},
	}

	slots := Candidates(days, rules, booked, 30*time.Minute, 30*time.Minute)
	if containsTime(slots, monday().Add(10*time.Hour+30*time.Minute)) {
		t.Fatal("10:30 must be blocked by the rule's buffers")
	}
}
