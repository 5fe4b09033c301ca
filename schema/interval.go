package schema

import (
	"sort"
	"time"
)

// TimedMeasurement is one data row of a timing log.
type TimedMeasurement struct {
	Values         []float64 // all numeric columns in file order
	FrequencyHz    float64
	ElapsedSeconds float64
	Row            int // zero-based data row, before any rows are skipped
}

// MeasurementGroup is the timing parse of one source file.
type MeasurementGroup struct {
	Filename         string
	Label            string
	AcquisitionStart time.Time
	Measurements     []TimedMeasurement
}

// LastElapsed returns the elapsed seconds of the final measurement, or zero.
func (g MeasurementGroup) LastElapsed() float64 {
	if len(g.Measurements) == 0 {
		return 0
	}
	return g.Measurements[len(g.Measurements)-1].ElapsedSeconds
}

// Interval is a labeled, typed window of absolute time.
type Interval struct {
	Label           string
	Kind            IntervalKind
	Start           time.Time
	End             time.Time
	DurationSeconds float64

	// SourceIndex is the discovery position of the originating file (measurements only).
	SourceIndex *int

	Filename         string
	FrequencyHz      *float64
	MeasurementIndex *int
	NMeasurements    *int
	HoldIndex        *int
}

// Contains reports whether t lies in the half-open window [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// IsHold reports whether the interval was synthesized to fill a gap.
func (iv Interval) IsHold() bool {
	return iv.Kind == HoldKind
}

// IntervalSet owns an ordered sequence of intervals and their provenance.
type IntervalSet struct {
	SourceDirectory string
	Pattern         string
	Resolution      Resolution
	GapTolerance    time.Duration
	CreatedAt       time.Time
	Intervals       []Interval
}

// Measurements returns only the MEASUREMENT intervals, in order.
func (s IntervalSet) Measurements() []Interval {
	var out []Interval
	for _, iv := range s.Intervals {
		if !iv.IsHold() {
			out = append(out, iv)
		}
	}
	return out
}

// Holds returns only the HOLD intervals, in order.
func (s IntervalSet) Holds() []Interval {
	var out []Interval
	for _, iv := range s.Intervals {
		if iv.IsHold() {
			out = append(out, iv)
		}
	}
	return out
}

// ByLabel indexes intervals by label. The first interval wins on duplicates.
func (s IntervalSet) ByLabel() map[string]Interval {
	idx := make(map[string]Interval, len(s.Intervals))
	for _, iv := range s.Intervals {
		if _, ok := idx[iv.Label]; !ok {
			idx[iv.Label] = iv
		}
	}
	return idx
}

// Span returns the earliest start and latest end of the set.
func (s IntervalSet) Span() (time.Time, time.Time) {
	if len(s.Intervals) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Intervals[0].Start, s.Intervals[len(s.Intervals)-1].End
}

// IsOrdered reports whether intervals are sorted by start and pairwise non-overlapping.
func (s IntervalSet) IsOrdered() bool {
	if !sort.SliceIsSorted(s.Intervals, func(i, j int) bool {
		return s.Intervals[i].Start.Before(s.Intervals[j].Start)
	}) {
		return false
	}
	for i := 1; i < len(s.Intervals); i++ {
		if s.Intervals[i-1].End.After(s.Intervals[i].Start) {
			return false
		}
	}
	return true
}
