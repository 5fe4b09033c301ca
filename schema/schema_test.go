package schema

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalKind_IntervalType(t *testing.T) {
	assert.Equal(t, "eis", MeasurementKind.IntervalType())
	assert.Equal(t, "hold", HoldKind.IntervalType())
}

func TestInterval_Contains(t *testing.T) {
	start := time.Date(2025, 4, 20, 10, 0, 0, 0, time.UTC)
	iv := Interval{Start: start, End: start.Add(time.Minute)}

	assert.True(t, iv.Contains(start), "start is inclusive")
	assert.True(t, iv.Contains(start.Add(30*time.Second)))
	assert.False(t, iv.Contains(start.Add(time.Minute)), "end is exclusive")
	assert.False(t, iv.Contains(start.Add(-time.Nanosecond)))
}

func TestIntervalSet_Accessors(t *testing.T) {
	base := time.Date(2025, 4, 20, 10, 0, 0, 0, time.UTC)
	set := IntervalSet{Intervals: []Interval{
		{Label: "a", Kind: MeasurementKind, Start: base, End: base.Add(time.Minute)},
		{Label: "hold_0", Kind: HoldKind, Start: base.Add(time.Minute), End: base.Add(2 * time.Minute)},
		{Label: "b", Kind: MeasurementKind, Start: base.Add(2 * time.Minute), End: base.Add(3 * time.Minute)},
	}}

	assert.Len(t, set.Measurements(), 2)
	assert.Len(t, set.Holds(), 1)
	assert.True(t, set.IsOrdered())

	first, last := set.Span()
	assert.Equal(t, base, first)
	assert.Equal(t, base.Add(3*time.Minute), last)

	idx := set.ByLabel()
	assert.Equal(t, HoldKind, idx["hold_0"].Kind)

	set.Intervals[0].End = base.Add(90 * time.Second)
	assert.False(t, set.IsOrdered())
}

func TestRunReport_Add(t *testing.T) {
	r := NewRunReport(PackageStage)
	r.Add("a.txt", OutcomeOK, "")
	r.Add("b.txt", OutcomeFailed, "bad columns")
	r.Add("c.txt", OutcomeWarning, "unmatched")
	r.Add("hold_0", OutcomeSkipped, "")

	assert.Equal(t, 2, r.Processed)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Warnings)
	assert.Equal(t, 4, r.Total())
	require.Len(t, r.Failures(), 1)
	assert.Equal(t, "b.txt", r.Failures()[0].Name)
}

func TestReductionResult_NPoints(t *testing.T) {
	ok := ReductionResult{Q: []float64{1, 2}, R: []float64{1, 2}, DR: []float64{0, 0}, DQ: []float64{0, 0}}
	assert.Equal(t, 2, ok.NPoints())

	bad := ReductionResult{Q: []float64{1, 2}, R: []float64{1}, DR: []float64{0, 0}, DQ: []float64{0, 0}}
	assert.Equal(t, -1, bad.NPoints())
}

func TestErrors_Unwrap(t *testing.T) {
	err := fmt.Errorf("build: %w", &EmptyInputError{Source: "/data"})
	assert.True(t, errors.Is(err, ErrEmptyInput))
	assert.Contains(t, err.Error(), "/data")

	err = fmt.Errorf("read: %w", &EmptyIntervalSetError{Path: "split.json"})
	assert.True(t, errors.Is(err, ErrEmptyIntervalSet))

	cause := errors.New("too few events")
	err = &ReductionFailure{Label: "seq_1", Err: cause}
	assert.True(t, errors.Is(err, cause))

	var rf *ReductionFailure
	require.True(t, errors.As(fmt.Errorf("wrap: %w", err), &rf))
	assert.Equal(t, "seq_1", rf.Label)
}

func TestErrors_Messages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&MalformedHeaderError{File: "x.mpt", Reason: "missing"}, "x.mpt"},
		{&NonMonotonicTimeError{File: "x.mpt", Row: 3, Previous: 2, Elapsed: 1}, "row 3"},
		{&SchemaMismatchError{File: "r1_a.txt", Reason: "3 columns"}, "r1_a.txt"},
		{&UnmatchedIntervalWarning{File: "r1_a.txt", Label: "a"}, `"a"`},
		{&OverlapError{First: "a", Second: "b"}, `"a"`},
	}
	for _, tt := range tests {
		assert.Contains(t, tt.err.Error(), tt.want)
	}
}
