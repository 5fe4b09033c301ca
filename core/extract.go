package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/huangsam/tnrpipe/core/intervals"
	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/internal/eislog"
	"github.com/huangsam/tnrpipe/internal/splitdoc"
	"github.com/huangsam/tnrpipe/schema"
)

// minPerMeasurementRows is the fewest rows that yield a row-to-row window.
const minPerMeasurementRows = 2

// runExtract discovers timing logs, builds the interval set and, when a split
// file is configured, persists it. Unreadable files are reported and skipped;
// an empty or overlapping result aborts the stage.
func runExtract(ctx context.Context, cfg *contract.Config) (schema.IntervalSet, *schema.RunReport, error) {
	start := time.Now()
	report := schema.NewRunReport(schema.ExtractStage)

	files, err := eislog.Discover(cfg.DataDir, cfg.Pattern, cfg.Exclude)
	if err != nil {
		return schema.IntervalSet{}, report, err
	}
	if len(files) == 0 {
		return schema.IntervalSet{}, report, &schema.EmptyInputError{Source: filepath.Join(cfg.DataDir, cfg.Pattern)}
	}

	groups := make([]schema.MeasurementGroup, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return schema.IntervalSet{}, report, err
		}
		if g, ok := parseTimingLog(path, cfg.Resolution, report); ok {
			groups = append(groups, g)
		}
	}

	src, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		src = cfg.DataDir
	}
	set, err := intervals.Build(groups, intervals.Options{
		Resolution:      cfg.Resolution,
		GapTolerance:    cfg.GapTolerance,
		HoldSlice:       cfg.HoldSlice,
		SourceDirectory: src,
		Pattern:         cfg.Pattern,
	})
	if err != nil {
		return set, report, err
	}
	set.CreatedAt = time.Now().UTC()

	if cfg.SplitFile != "" {
		if err := splitdoc.Write(cfg.SplitFile, set); err != nil {
			return set, report, err
		}
		report.Output = cfg.SplitFile
	}
	report.Duration = time.Since(start)
	return set, report, nil
}

// parseTimingLog reads one file into a group and records its fate in report.
func parseTimingLog(path string, resolution schema.Resolution, report *schema.RunReport) (schema.MeasurementGroup, bool) {
	name := filepath.Base(path)
	timing, err := eislog.Open(path)
	if err != nil {
		var malformed *schema.MalformedHeaderError
		if errors.As(err, &malformed) {
			contract.LogWarn("Skipping timing log", err)
		}
		report.Add(name, schema.OutcomeFailed, err.Error())
		return schema.MeasurementGroup{}, false
	}

	group, warnings, err := timing.Group()
	if err != nil {
		report.Add(name, schema.OutcomeFailed, err.Error())
		return schema.MeasurementGroup{}, false
	}

	for _, w := range warnings {
		var backwards *schema.NonMonotonicTimeError
		if errors.As(w, &backwards) {
			contract.LogWarn("Skipping non-monotonic row", w)
		}
	}

	n := len(group.Measurements)
	switch {
	case n == 0:
		report.Add(name, schema.OutcomeSkipped, "no measurement rows")
		return group, false
	case resolution == schema.PerMeasurement && n < minPerMeasurementRows:
		report.Add(name, schema.OutcomeSkipped, fmt.Sprintf("per-frequency resolution needs at least %d rows", minPerMeasurementRows))
		return group, false
	case intervals.WindowCount(group, resolution) == 0:
		report.Add(name, schema.OutcomeSkipped, "zero-length span: no interval")
		return group, false
	case len(warnings) > 0:
		report.Add(name, schema.OutcomeWarning, fmt.Sprintf("%d rows skipped; first: %v", len(warnings), warnings[0]))
	default:
		report.Add(name, schema.OutcomeOK, fmt.Sprintf("%d measurements", n))
	}
	return group, true
}
