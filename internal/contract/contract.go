// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/tnrpipe/schema"
)

// EventStream provides timestamp-range selection over an externally stored event dataset.
// This allows the reduction driver to be tested without a real event file.
type EventStream interface {
	// Select returns every event whose pulse time lies in [start, end).
	Select(ctx context.Context, start, end time.Time) ([]schema.Event, error)

	// RunInfo returns the run number and duration recorded with the events.
	RunInfo(ctx context.Context) (schema.RunInfo, error)
}

// Reducer turns the events of one interval into a reflectivity curve.
// Implementations are opaque and may be slow; callers bound them with ctx.
type Reducer interface {
	Reduce(ctx context.Context, interval schema.Interval, events []schema.Event, cfg schema.ReductionConfig) (schema.ReductionResult, error)
}

// ReducerFunc adapts a plain function to the Reducer interface.
type ReducerFunc func(ctx context.Context, interval schema.Interval, events []schema.Event, cfg schema.ReductionConfig) (schema.ReductionResult, error)

// Reduce calls f.
func (f ReducerFunc) Reduce(ctx context.Context, interval schema.Interval, events []schema.Event, cfg schema.ReductionConfig) (schema.ReductionResult, error) {
	return f(ctx, interval, events, cfg)
}

// RunStore defines the interface for tracking pipeline runs.
// This allows the ledger to be mocked for testing.
type RunStore interface {
	// BeginRun creates a new run record and returns its unique ID.
	BeginRun(stage schema.Stage, batchID string, startTime time.Time, configParams map[string]any) (int64, error)

	// RecordOutcome stores the fate of one file or interval in a run.
	RecordOutcome(runID int64, outcome schema.ItemOutcome) error

	// EndRun stores the completion time and counts of a run.
	EndRun(runID int64, endTime time.Time, report *schema.RunReport) error

	// GetStatus returns status information about the ledger.
	GetStatus() (schema.LedgerStatus, error)

	// GetAllRuns retrieves all run records.
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllOutcomes retrieves all per-item outcome records.
	GetAllOutcomes() ([]schema.OutcomeRecord, error)

	// Clear removes every run and outcome.
	Clear() error

	// Close closes the underlying connection.
	Close() error
}
