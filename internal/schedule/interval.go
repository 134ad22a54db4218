package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open [Start, End) window expressed as offsets from
// midnight. All intervals live within a single calendar day.
type Interval struct {
	Start time.Duration
	End   time.Duration
}

func (iv Interval) Empty() bool {
	return iv.End <= iv.Start
}

func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

func (iv Interval) Contains(other Interval) bool {
	return other.Start >= iv.Start && other.End <= iv.End
}

// Subtract removes cut from base and returns what is left: zero, one, or two
// intervals. Zero-length remainders are dropped.
func Subtract(base, cut Interval) []Interval {
	if base.Empty() || !base.Overlaps(cut) {
		if base.Empty() {
			return nil
		}
		return []Interval{base}
	}

	var out []Interval
	if cut.Start > base.Start {
		out = append(out, Interval{Start: base.Start, End: cut.Start})
	}
	if cut.End < base.End {
		out = append(out, Interval{Start: cut.End, End: base.End})
	}
	return out
}

// SubtractAll removes cut from every interval in the set.
func SubtractAll(set []Interval, cut Interval) []Interval {
	var out []Interval
	for _, iv := range set {
		out = append(out, Subtract(iv, cut)...)
	}
	return out
}

// Merge sorts the set by start and coalesces overlapping or touching
// intervals. Empty intervals are discarded.
func Merge(set []Interval) []Interval {
	work := make([]Interval, 0, len(set))
	for _, iv := range set {
		if !iv.Empty() {
			work = append(work, iv)
		}
	}
	if len(work) == 0 {
		return nil
	}

	sort.Slice(work, func(i, j int) bool {
		if work[i].Start == work[j].Start {
			return work[i].End < work[j].End
		}
		return work[i].Start < work[j].Start
	})

	out := []Interval{work[0]}
	for _, iv := range work[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}
