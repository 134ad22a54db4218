package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var testResource = uuid.MustParse("5b6fbca3-22ad-44b1-b53a-6df90e558b34")

// Monday 2026-03-02
func monday() time.Time {
	return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
}

func weekdayRule() AvailabilityRule {
	return AvailabilityRule{
		ID:         uuid.New(),
		ResourceID: testResource,
		Recurrence: RecurrenceWeekly,
		Days:       []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Start:      9 * time.Hour,
		End:        17 * time.Hour,
		Breaks: []Break{
			{Start: 12 * time.Hour, End: 13 * time.Hour},
		},
		EffectiveFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCompileDayWeekdayRule(t *testing.T) {
	rules := []AvailabilityRule{weekdayRule()}

	free := CompileDay(rules, nil, monday())
	want := []Interval{
		{Start: 9 * time.Hour, End: 12 * time.Hour},
		{Start: 13 * time.Hour, End: 17 * time.Hour},
	}
	if !sameIntervals(free, want) {
		t.Fatalf("CompileDay = %v, want %v", free, want)
	}
}

func TestCompileDayWeekendEmpty(t *testing.T) {
	rules := []AvailabilityRule{weekdayRule()}
	saturday := monday().AddDate(0, 0, 5)

	free := CompileDay(rules, nil, saturday)
	if len(free) != 0 {
		t.Fatalf("expected no availability on Saturday, got %v", free)
	}
}

func TestCompileDayBeforeEffectiveFrom(t *testing.T) {
	rule := weekdayRule()
	rule.EffectiveFrom = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	free := CompileDay([]AvailabilityRule{rule}, nil, monday())
	if len(free) != 0 {
		t.Fatalf("expected no availability before effective_from, got %v", free)
	}
}

func TestCompileDayAfterEffectiveUntil(t *testing.T) {
	rule := weekdayRule()
	until := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rule.EffectiveUntil = &until

	free := CompileDay([]AvailabilityRule{rule}, nil, monday())
	if len(free) != 0 {
		t.Fatalf("expected no availability after effective_until, got %v", free)
	}
}

func TestCompileDayOneTimeRule(t *testing.T) {
	rule := AvailabilityRule{
		ID:            uuid.New(),
		ResourceID:    testResource,
		Recurrence:    RecurrenceOneTime,
		Start:         10 * time.Hour,
		End:           14 * time.Hour,
		EffectiveFrom: monday(),
	}

	free := CompileDay([]AvailabilityRule{rule}, nil, monday())
	want := []Interval{{Start: 10 * time.Hour, End: 14 * time.Hour}}
	if !sameIntervals(free, want) {
		t.Fatalf("CompileDay = %v, want %v", free, want)
	}

	free = CompileDay([]AvailabilityRule{rule}, nil, monday().AddDate(0, 0, 7))
	if len(free) != 0 {
		t.Fatalf("one-time rule applied outside its date: %v", free)
	}
}

func TestCompileDayBlockExceptionWins(t *testing.T) {
	rules := []AvailabilityRule{weekdayRule()}
	exceptions := []Exception{
		{ResourceID: testResource, Date: monday(), Kind: ExceptionBlock},
		{ResourceID: testResource, Date: monday(), Kind: ExceptionAddInterval,
			Window: Interval{Start: 18 * time.Hour, End: 20 * time.Hour}},
	}

	free := CompileDay(rules, exceptions, monday())
	if len(free) != 0 {
		t.Fatalf("block exception must empty the day, got %v", free)
	}
}

func TestCompileDayAddIntervalException(t *testing.T) {
	rules := []AvailabilityRule{weekdayRule()}
	exceptions := []Exception{
		{ResourceID: testResource, Date: monday(), Kind: ExceptionAddInterval,
			Window: Interval{Start: 18 * time.Hour, End: 20 * time.Hour}},
	}

	free := CompileDay(rules, exceptions, monday())
	want := []Interval{
		{Start: 9 * time.Hour, End: 12 * time.Hour},
		{Start: 13 * time.Hour, End: 17 * time.Hour},
		{Start: 18 * time.Hour, End: 20 * time.Hour},
	}
	if !sameIntervals(free, want) {
		t.Fatalf("CompileDay = %v, want %v", free, want)
	}
}

func TestCompileDayOverlappingRulesMerge(t *testing.T) {
	morning := weekdayRule()
	morning.Breaks = nil
	morning.Start = 8 * time.Hour
	morning.End = 13 * time.Hour

	afternoon := weekdayRule()
	afternoon.Breaks = nil
	afternoon.Start = 12 * time.Hour
	afternoon.End = 18 * time.Hour

	free := CompileDay([]AvailabilityRule{morning, afternoon}, nil, monday())
	want := []Interval{{Start: 8 * time.Hour, End: 18 * time.Hour}}
	if !sameIntervals(free, want) {
		t.Fatalf("CompileDay = %v, want %v", free, want)
	}
}

func TestCompileDayBreakWeekdayScoped(t *testing.T) {
	rule := weekdayRule()
	rule.Breaks = []Break{
		{Start: 12 * time.Hour, End: 13 * time.Hour, Days: []time.Weekday{time.Friday}},
	}

	// Monday: the Friday-only break does not apply.
	free := CompileDay([]AvailabilityRule{rule}, nil, monday())
	want := []Interval{{Start: 9 * time.Hour, End: 17 * time.Hour}}
	if !sameIntervals(free, want) {
		t.Fatalf("CompileDay Monday = %v, want %v", free, want)
	}

	friday := monday().AddDate(0, 0, 4)
	free = CompileDay([]AvailabilityRule{rule}, nil, friday)
	want = []Interval{
		{Start: 9 * time.Hour, End: 12 * time.Hour},
		{Start: 13 * time.Hour, End: 17 * time.Hour},
	}
	if !sameIntervals(free, want) {
		t.Fatalf("CompileDay Friday = %v, want %v", free, want)
	}
}

func TestCompileRangeDeterministic(t *testing.T) {
	rules := []AvailabilityRule{weekdayRule()}
	from := monday()
	to := monday().AddDate(0, 0, 7)

	a := CompileRange(rules, nil, from, to)
	b := CompileRange(rules, nil, from, to)

	if len(a) != 7 || len(b) != 7 {
		t.Fatalf("expected 7 compiled days, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Date.Equal(b[i].Date) || !sameIntervals(a[i].Free, b[i].Free) {
			t.Fatalf("compilation not deterministic at day %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestValidateRule(t *testing.T) {
	valid := weekdayRule()
	if err := ValidateRule(valid); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*AvailabilityRule)
	}{
		{"missing resource", func(r *AvailabilityRule) { r.ResourceID = uuid.Nil }},
		{"start after end", func(r *AvailabilityRule) { r.Start = 18 * time.Hour }},
		{"cross midnight", func(r *AvailabilityRule) { r.End = 25 * time.Hour }},
		{"empty days", func(r *AvailabilityRule) { r.Days = nil }},
		{"negative buffer", func(r *AvailabilityRule) { r.BufferBefore = -time.Minute }},
		{"break outside hours", func(r *AvailabilityRule) {
			r.Breaks = []Break{{Start: 7 * time.Hour, End: 8 * time.Hour}}
		}},
		{"empty break", func(r *AvailabilityRule) {
			r.Breaks = []Break{{Start: 12 * time.Hour, End: 12 * time.Hour}}
		}},
		{"unknown recurrence", func(r *AvailabilityRule) { r.Recurrence = "monthly" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := weekdayRule()
			tc.mutate(&rule)
			err := ValidateRule(rule)
			if err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEffectiveBuffersTakesWidest(t *testing.T) {
	a := weekdayRule()
	a.BufferBefore = 5 * time.Minute
	a.BufferAfter = 20 * time.Minute

	b := weekdayRule()
	b.BufferBefore = 15 * time.Minute
	b.BufferAfter = 10 * time.Minute

	before, after := EffectiveBuffers([]AvailabilityRule{a, b}, monday())
	if before != 15*time.Minute || after != 20*time.Minute {
		t.Fatalf("EffectiveBuffers = (%v, %v), want (15m, 20m)", before, after)
	}
}
