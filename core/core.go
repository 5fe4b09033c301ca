// Package core has the pipeline stages: interval extraction, event reduction
// and dataset packaging.
package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/internal/events"
	"github.com/huangsam/tnrpipe/internal/outwriter"
	"github.com/huangsam/tnrpipe/internal/reducer"
	"github.com/huangsam/tnrpipe/internal/splitdoc"
	"github.com/huangsam/tnrpipe/schema"
)

// DefaultSplitFileName is the split document name used by the pipeline when none is given.
const DefaultSplitFileName = "eis_intervals.json"

// ExecutorFunc defines the function signature for executing a pipeline command.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, store contract.RunStore) error

// stageFunc runs one stage and returns its report, which may be partial on error.
type stageFunc func(ctx context.Context, cfg *contract.Config, store contract.RunStore) (*schema.RunReport, error)

// ExecuteExtract builds intervals from timing logs and writes the split document.
// Without a split file the interval table is printed in place of the run report.
func ExecuteExtract(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	return executeStage(ctx, cfg, store, extractStage, cfg.SplitFile != "")
}

// ExecuteReduce reduces the events of every interval in the split document.
func ExecuteReduce(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	return executeStage(ctx, cfg, store, reduceStage, true)
}

// ExecutePackage packages reduction results into the main and metadata tables.
func ExecutePackage(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	return executeStage(ctx, cfg, store, packageStage, true)
}

// ExecutePipeline runs extract, reduce and package in sequence under one batch ID.
// A stage error stops the pipeline; reports of finished stages are still printed.
func ExecutePipeline(ctx context.Context, cfg *contract.Config, store contract.RunStore) error {
	cfg = cfg.Clone()
	if cfg.SplitFile == "" {
		cfg.SplitFile = filepath.Join(cfg.ReducedDir, DefaultSplitFileName)
	}
	for _, stage := range []schema.Stage{schema.ExtractStage, schema.ReduceStage, schema.PackageStage} {
		if err := cfg.RequireFor(stage); err != nil {
			return err
		}
	}

	ctx = withSuppressReport(withBatchID(ctx, batchIDFromContext(ctx)))
	var reports []*schema.RunReport
	var runErr error
	for _, stage := range []stageFunc{extractStage, reduceStage, packageStage} {
		report, err := stage(ctx, cfg, store)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			runErr = err
			break
		}
	}
	if err := outwriter.PrintRunReports(reports, cfg); err != nil {
		return err
	}
	return runErr
}

func executeStage(ctx context.Context, cfg *contract.Config, store contract.RunStore, stage stageFunc, printReport bool) error {
	ctx = withBatchID(ctx, batchIDFromContext(ctx))
	report, err := stage(ctx, cfg, store)
	if printReport && report != nil && (err == nil || report.Total() > 0) && !shouldSuppressReport(ctx) {
		if perr := outwriter.PrintRunReports([]*schema.RunReport{report}, cfg); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func extractStage(ctx context.Context, cfg *contract.Config, store contract.RunStore) (*schema.RunReport, error) {
	contract.LogInfo("🔎 Extracting %s intervals from %s", cfg.Resolution, filepath.Join(cfg.DataDir, cfg.Pattern))

	set, report, err := GetExtractResults(ctx, cfg, store)
	if err != nil {
		return report, err
	}

	contract.LogInfo("📐 Built %d intervals (%d measurements, %d holds)", len(set.Intervals), len(set.Measurements()), len(set.Holds()))
	if cfg.SplitFile == "" && !shouldSuppressReport(ctx) {
		if err := outwriter.PrintIntervals(set, cfg); err != nil {
			return report, err
		}
	}
	return report, nil
}

func reduceStage(ctx context.Context, cfg *contract.Config, store contract.RunStore) (*schema.RunReport, error) {
	if err := cfg.RequireFor(schema.ReduceStage); err != nil {
		return nil, err
	}
	set, err := splitdoc.Read(cfg.SplitFile)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.TemplateFile); err != nil {
		return nil, fmt.Errorf("reduction template: %w", err)
	}
	stream, err := events.OpenParquet(cfg.EventFile)
	if err != nil {
		return nil, err
	}
	red, err := reducer.NewExecReducer(cfg.ReducerCommand)
	if err != nil {
		return nil, err
	}
	return reduceWith(ctx, cfg, store, set, stream, red)
}

// reduceWith runs the reduction stage against explicit collaborators.
func reduceWith(ctx context.Context, cfg *contract.Config, store contract.RunStore, set schema.IntervalSet, stream contract.EventStream, red contract.Reducer) (*schema.RunReport, error) {
	contract.LogInfo("🔬 Reducing %d intervals with %d workers", len(set.Intervals), cfg.Workers)

	tracker := beginTracking(store, schema.ReduceStage, batchIDFromContext(ctx), configParams(cfg, schema.ReduceStage))
	out, err := runReduce(ctx, cfg, set, stream, red)
	tracker.finish(out.Report)
	if err != nil {
		return out.Report, err
	}
	if len(out.Results) == 0 && out.Report.Failed > 0 {
		return out.Report, fmt.Errorf("all %d reductions failed", out.Report.Failed)
	}
	contract.LogInfo("💾 Wrote reduction summary to %s", out.SummaryFile)
	return out.Report, nil
}

func packageStage(ctx context.Context, cfg *contract.Config, store contract.RunStore) (*schema.RunReport, error) {
	out, err := GetPackageResults(ctx, cfg, store)
	if err != nil {
		if out == nil {
			return nil, err
		}
		return out.Report, err
	}
	if cfg.ValidateOnly {
		contract.LogInfo("✅ Validation passed: %d of %d result files can be packaged", len(out.Rows), out.Report.Total())
	} else {
		contract.LogInfo("💾 Wrote %d rows to %s and metadata to %s", len(out.Rows), out.MainFile, out.MetadataFile)
	}
	return out.Report, nil
}

// WithSuppressReport returns a context in which stages do not print their reports.
func WithSuppressReport(ctx context.Context) context.Context {
	return withSuppressReport(ctx)
}

// GetExtractResults builds the interval set without printing anything.
// The split document is written only when cfg.SplitFile is set.
func GetExtractResults(ctx context.Context, cfg *contract.Config, store contract.RunStore) (schema.IntervalSet, *schema.RunReport, error) {
	if err := cfg.RequireFor(schema.ExtractStage); err != nil {
		return schema.IntervalSet{}, nil, err
	}
	tracker := beginTracking(store, schema.ExtractStage, batchIDFromContext(ctx), configParams(cfg, schema.ExtractStage))
	set, report, err := runExtract(ctx, cfg)
	tracker.finish(report)
	return set, report, err
}

// GetPackageResults packages (or with ValidateOnly, validates) without printing anything.
func GetPackageResults(ctx context.Context, cfg *contract.Config, store contract.RunStore) (*PackageOutput, error) {
	if err := cfg.RequireFor(schema.PackageStage); err != nil {
		return nil, err
	}
	tracker := beginTracking(store, schema.PackageStage, batchIDFromContext(ctx), configParams(cfg, schema.PackageStage))
	out, err := runPackage(ctx, cfg)
	tracker.finish(out.Report)
	return out, err
}
