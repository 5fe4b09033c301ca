package schema

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors that carry no extra context.
var (
	ErrEmptyInput       = errors.New("no measurement groups supplied")
	ErrEmptyIntervalSet = errors.New("split document has no intervals")
)

// MalformedHeaderError reports a timing log without a usable acquisition start line.
type MalformedHeaderError struct {
	File   string
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed header in %s: %s", e.File, e.Reason)
}

// NonMonotonicTimeError reports a row whose elapsed time went backwards.
type NonMonotonicTimeError struct {
	File     string
	Row      int
	Previous float64
	Elapsed  float64
}

func (e *NonMonotonicTimeError) Error() string {
	return fmt.Sprintf("non-monotonic time in %s at row %d: %.6f < %.6f", e.File, e.Row, e.Elapsed, e.Previous)
}

// EmptyInputError wraps ErrEmptyInput with the directory that was searched.
type EmptyInputError struct {
	Source string
}

func (e *EmptyInputError) Error() string {
	if e.Source == "" {
		return ErrEmptyInput.Error()
	}
	return fmt.Sprintf("%s in %s", ErrEmptyInput, e.Source)
}

func (e *EmptyInputError) Unwrap() error { return ErrEmptyInput }

// EmptyIntervalSetError wraps ErrEmptyIntervalSet with the offending document path.
type EmptyIntervalSetError struct {
	Path string
}

func (e *EmptyIntervalSetError) Error() string {
	if e.Path == "" {
		return ErrEmptyIntervalSet.Error()
	}
	return fmt.Sprintf("%s: %s", ErrEmptyIntervalSet, e.Path)
}

func (e *EmptyIntervalSetError) Unwrap() error { return ErrEmptyIntervalSet }

// OverlapError reports two measurement intervals that intersect.
type OverlapError struct {
	First       string
	Second      string
	FirstEnd    time.Time
	SecondStart time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("interval %q (ends %s) overlaps %q (starts %s)",
		e.First, e.FirstEnd.Format(time.RFC3339Nano), e.Second, e.SecondStart.Format(time.RFC3339Nano))
}

// ReductionFailure reports a reducer error or timeout for one interval.
type ReductionFailure struct {
	Label string
	Err   error
}

func (e *ReductionFailure) Error() string {
	return fmt.Sprintf("reduction failed for %s: %v", e.Label, e.Err)
}

func (e *ReductionFailure) Unwrap() error { return e.Err }

// SchemaMismatchError reports a result file that is not four equal-length numeric columns.
type SchemaMismatchError struct {
	File   string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch in %s: %s", e.File, e.Reason)
}

// UnmatchedIntervalWarning reports a result whose label is not in the split document.
type UnmatchedIntervalWarning struct {
	File  string
	Label string
}

func (e *UnmatchedIntervalWarning) Error() string {
	return fmt.Sprintf("no interval labelled %q for %s", e.Label, e.File)
}
