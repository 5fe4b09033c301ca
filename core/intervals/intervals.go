// Package intervals builds ordered, non-overlapping time intervals from timing log parses.
// Elapsed offsets are converted to absolute time here and never leave this package.
package intervals

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/huangsam/tnrpipe/schema"
)

// minHoldSlice is the shortest trailing slice kept on its own when slicing a gap.
const minHoldSlice = time.Second

// Options controls how an IntervalSet is built.
type Options struct {
	Resolution      schema.Resolution
	GapTolerance    time.Duration // gaps strictly longer than this get HOLD intervals
	HoldSlice       time.Duration // 0 fills each gap with a single HOLD
	SourceDirectory string
	Pattern         string
}

// Absolute converts an elapsed offset in seconds to an absolute timestamp.
func Absolute(start time.Time, elapsedSeconds float64) time.Time {
	return start.Add(time.Duration(math.Round(elapsedSeconds * float64(time.Second))))
}

// candidate is a measurement interval with its discovery position for tie-breaks.
type candidate struct {
	iv    schema.Interval
	group int
	seq   int
}

// Build turns timing log groups into an IntervalSet. Groups should arrive in
// discovery order; they are ordered by start time here, and equal starts keep
// discovery order. Zero-length windows are dropped.
func Build(groups []schema.MeasurementGroup, opts Options) (schema.IntervalSet, error) {
	set := schema.IntervalSet{
		SourceDirectory: opts.SourceDirectory,
		Pattern:         opts.Pattern,
		Resolution:      opts.Resolution,
		GapTolerance:    opts.GapTolerance,
	}
	if len(groups) == 0 {
		return set, &schema.EmptyInputError{Source: opts.SourceDirectory}
	}

	var cands []candidate
	for gi, g := range groups {
		switch opts.Resolution {
		case schema.PerMeasurement:
			cands = append(cands, perMeasurement(gi, g)...)
		case schema.PerFile, "":
			if c, ok := perFile(gi, g); ok {
				cands = append(cands, c)
			}
		default:
			return set, fmt.Errorf("unsupported resolution %q", opts.Resolution)
		}
	}
	if len(cands) == 0 {
		return set, &schema.EmptyInputError{Source: opts.SourceDirectory}
	}

	slices.SortStableFunc(cands, func(a, b candidate) int {
		return cmp.Or(a.iv.Start.Compare(b.iv.Start), cmp.Compare(a.group, b.group), cmp.Compare(a.seq, b.seq))
	})

	measured := make([]schema.Interval, len(cands))
	for i, c := range cands {
		measured[i] = c.iv
	}
	if err := checkOverlap(measured); err != nil {
		return set, err
	}

	set.Intervals = withHolds(measured, opts.GapTolerance, opts.HoldSlice)
	uniquifyLabels(set.Intervals)
	return set, nil
}

// WindowCount returns how many measurement intervals g yields under resolution.
// Zero means the group spans no time and is left out of the set.
func WindowCount(g schema.MeasurementGroup, resolution schema.Resolution) int {
	if resolution == schema.PerMeasurement {
		return len(perMeasurement(0, g))
	}
	if _, ok := perFile(0, g); ok {
		return 1
	}
	return 0
}

func perFile(gi int, g schema.MeasurementGroup) (candidate, bool) {
	if len(g.Measurements) == 0 {
		return candidate{}, false
	}
	start := g.AcquisitionStart
	end := Absolute(start, g.LastElapsed())
	if !start.Before(end) {
		return candidate{}, false
	}
	n := len(g.Measurements)
	iv := newMeasurement(labelOf(g), g.Filename, gi, start, end)
	iv.NMeasurements = &n
	return candidate{iv: iv, group: gi}, true
}

// perMeasurement spans each row to the next. The last row ends at the file end,
// which is its own timestamp, so it contributes no window.
func perMeasurement(gi int, g schema.MeasurementGroup) []candidate {
	var out []candidate
	for i := 0; i+1 < len(g.Measurements); i++ {
		cur, next := g.Measurements[i], g.Measurements[i+1]
		start := Absolute(g.AcquisitionStart, cur.ElapsedSeconds)
		end := Absolute(g.AcquisitionStart, next.ElapsedSeconds)
		if !start.Before(end) {
			continue
		}
		idx, freq := i, cur.FrequencyHz
		iv := newMeasurement(fmt.Sprintf("%s_m%d", labelOf(g), i), g.Filename, gi, start, end)
		iv.MeasurementIndex = &idx
		iv.FrequencyHz = &freq
		out = append(out, candidate{iv: iv, group: gi, seq: i})
	}
	return out
}

func newMeasurement(label, filename string, gi int, start, end time.Time) schema.Interval {
	src := gi
	return schema.Interval{
		Label:           label,
		Kind:            schema.MeasurementKind,
		Start:           start,
		End:             end,
		DurationSeconds: end.Sub(start).Seconds(),
		SourceIndex:     &src,
		Filename:        filename,
	}
}

func labelOf(g schema.MeasurementGroup) string {
	if g.Label != "" {
		return g.Label
	}
	return g.Filename
}

// checkOverlap fails on the first pair of sorted intervals that intersect.
func checkOverlap(sorted []schema.Interval) error {
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.End.After(cur.Start) {
			return &schema.OverlapError{First: prev.Label, Second: cur.Label, FirstEnd: prev.End, SecondStart: cur.Start}
		}
	}
	return nil
}

// withHolds interleaves HOLD intervals into every gap longer than tolerance.
func withHolds(measured []schema.Interval, tolerance, slice time.Duration) []schema.Interval {
	out := make([]schema.Interval, 0, len(measured))
	holdIndex := 0
	for i, iv := range measured {
		if i > 0 {
			prevEnd := measured[i-1].End
			if gap := iv.Start.Sub(prevEnd); gap > 0 && gap > tolerance {
				for _, w := range sliceGap(prevEnd, iv.Start, slice) {
					out = append(out, newHold(holdIndex, w[0], w[1]))
					holdIndex++
				}
			}
		}
		out = append(out, iv)
	}
	return out
}

func newHold(index int, start, end time.Time) schema.Interval {
	idx := index
	return schema.Interval{
		Label:           fmt.Sprintf("hold_%d", index),
		Kind:            schema.HoldKind,
		Start:           start,
		End:             end,
		DurationSeconds: end.Sub(start).Seconds(),
		HoldIndex:       &idx,
	}
}

// sliceGap cuts [start, end) into windows of at most slice, with a partial final
// window. A trailing remainder under minHoldSlice is merged into the window before
// it, and a whole gap under minHoldSlice yields no window at all.
func sliceGap(start, end time.Time, slice time.Duration) [][2]time.Time {
	if slice <= 0 {
		return [][2]time.Time{{start, end}}
	}
	if end.Sub(start) < minHoldSlice {
		return nil
	}
	var out [][2]time.Time
	for s := start; s.Before(end); s = s.Add(slice) {
		e := s.Add(slice)
		if e.After(end) {
			e = end
		}
		if len(out) > 0 && e.Sub(s) < minHoldSlice {
			out[len(out)-1][1] = e
			break
		}
		out = append(out, [2]time.Time{s, e})
	}
	return out
}

// uniquifyLabels suffixes repeated labels so every interval can be joined by label.
// Generated labels are reserved too, so "a, a, a_1" becomes "a, a_1, a_1_1".
func uniquifyLabels(ivs []schema.Interval) {
	used := make(map[string]struct{}, len(ivs))
	next := make(map[string]int, len(ivs))
	for i := range ivs {
		label := ivs[i].Label
		if _, taken := used[label]; taken {
			n := max(next[label], 1)
			for {
				candidate := fmt.Sprintf("%s_%d", ivs[i].Label, n)
				n++
				if _, taken := used[candidate]; !taken {
					label = candidate
					break
				}
			}
			next[ivs[i].Label] = n
		}
		used[label] = struct{}{}
		ivs[i].Label = label
	}
}
