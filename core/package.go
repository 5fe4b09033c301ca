package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/tnrpipe/internal/contract"
	tnrparquet "github.com/huangsam/tnrpipe/internal/parquet"
	"github.com/huangsam/tnrpipe/internal/resultfile"
	"github.com/huangsam/tnrpipe/internal/splitdoc"
	"github.com/huangsam/tnrpipe/schema"
)

// now is swapped in tests that need a fixed packaging time.
var now = time.Now

// PackageOutput is the packaged dataset and where it was written.
type PackageOutput struct {
	Rows         []tnrparquet.DatasetRow
	Metadata     tnrparquet.ExperimentMetadata
	MainFile     string
	MetadataFile string
	Report       *schema.RunReport
}

// MissingInputError reports packaging inputs that do not exist.
type MissingInputError struct {
	Paths []string
}

func (e *MissingInputError) Error() string {
	return "missing input: " + strings.Join(e.Paths, ", ")
}

// PackageFilePath returns the main table path, defaulting into the reduced directory.
func PackageFilePath(cfg *contract.Config) string {
	if cfg.PackageFile != "" {
		return cfg.PackageFile
	}
	return filepath.Join(cfg.ReducedDir, schema.DefaultPackageFile)
}

// runPackage validates the inputs, joins every usable result file to its
// interval and writes the main and metadata tables. With ValidateOnly set,
// nothing is written but the outcome is the same.
func runPackage(ctx context.Context, cfg *contract.Config) (*PackageOutput, error) {
	begin := time.Now()
	report := schema.NewRunReport(schema.PackageStage)
	out := &PackageOutput{Report: report, MainFile: PackageFilePath(cfg)}
	out.MetadataFile = tnrparquet.MetadataPath(out.MainFile)

	if err := validatePackageInputs(cfg); err != nil {
		return out, err
	}

	splitRaw, err := os.ReadFile(cfg.SplitFile)
	if err != nil {
		return out, fmt.Errorf("failed to read split document: %w", err)
	}
	set, err := splitdoc.Unmarshal(splitRaw)
	if err != nil {
		var empty *schema.EmptyIntervalSetError
		if errors.As(err, &empty) {
			empty.Path = cfg.SplitFile
			return out, empty
		}
		return out, fmt.Errorf("%s: %w", cfg.SplitFile, err)
	}
	template, err := os.ReadFile(cfg.TemplateFile)
	if err != nil {
		return out, fmt.Errorf("failed to read reduction template: %w", err)
	}
	summary, summaryRaw, err := loadReductionSummary(cfg.ReducedDir)
	if err != nil {
		return out, err
	}

	files, err := filepath.Glob(filepath.Join(cfg.ReducedDir, "*.txt"))
	if err != nil {
		return out, err
	}
	slices.Sort(files)
	if len(files) == 0 {
		return out, fmt.Errorf("no reduction result files in %s", cfg.ReducedDir)
	}

	byLabel := set.ByLabel()
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		name := filepath.Base(path)
		res, err := resultfile.Read(path)
		if err != nil {
			report.Add(name, schema.OutcomeFailed, err.Error())
			continue
		}
		row := datasetRow(summary.RunNumber, name, path, res)
		if iv, ok := byLabel[res.IntervalLabel]; ok {
			attachInterval(&row, iv)
			report.Add(name, schema.OutcomeOK, fmt.Sprintf("%d points", row.NPoints))
		} else {
			warning := &schema.UnmatchedIntervalWarning{File: name, Label: res.IntervalLabel}
			report.Add(name, schema.OutcomeWarning, warning.Error())
		}
		out.Rows = append(out.Rows, row)
	}
	if len(out.Rows) == 0 {
		return out, fmt.Errorf("none of the %d result files in %s could be packaged", len(files), cfg.ReducedDir)
	}

	nIntervals := summary.NIntervals
	if nIntervals == 0 {
		nIntervals = len(set.Intervals)
	}
	out.Metadata = tnrparquet.ExperimentMetadata{
		RunNumber:             int64(summary.RunNumber),
		TotalDuration:         summary.Duration,
		NIntervals:            int64(nIntervals),
		NReducedFiles:         int64(len(files)),
		SourceDirectory:       set.SourceDirectory,
		EISPattern:            set.Pattern,
		Resolution:            string(set.Resolution),
		ReductionTemplateXML:  string(template),
		PackagedTimestamp:     now().UTC().Format(time.RFC3339Nano),
		PackagerVersion:       schema.PackagerVersion,
		IntervalsJSON:         intervalsJSON(splitRaw),
		SplitMetadataJSON:     compactJSON(splitRaw),
		ReductionMetadataJSON: compactJSON(summaryRaw),
	}

	if !cfg.ValidateOnly {
		if err := tnrparquet.WriteFile(out.MainFile, out.Rows); err != nil {
			return out, err
		}
		if err := tnrparquet.WriteFile(out.MetadataFile, []tnrparquet.ExperimentMetadata{out.Metadata}); err != nil {
			return out, err
		}
		report.Output = out.MainFile
	}
	report.Duration = time.Since(begin)
	return out, nil
}

// validatePackageInputs checks that every input path exists, naming all that do not.
func validatePackageInputs(cfg *contract.Config) error {
	var missing []string
	check := func(path string, wantDir bool) {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() != wantDir {
			missing = append(missing, path)
		}
	}
	check(cfg.SplitFile, false)
	check(cfg.ReducedDir, true)
	check(cfg.TemplateFile, false)
	if len(missing) > 0 {
		return &MissingInputError{Paths: missing}
	}
	return nil
}

// loadReductionSummary reads the first *_eis_reduction.json in dir. A missing
// summary is a warning; packaging continues with zero run number and duration.
func loadReductionSummary(dir string) (schema.ReductionSummary, []byte, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+schema.ReductionSummarySuffix))
	if err != nil {
		return schema.ReductionSummary{}, nil, err
	}
	slices.Sort(matches)
	if len(matches) == 0 {
		contract.LogInfo("⚠️  No reduction summary in %s; run number and duration default to 0", dir)
		empty := schema.ReductionSummary{Intervals: []schema.SummaryInterval{}, ReducedFiles: []string{}}
		raw, err := json.Marshal(empty)
		return empty, raw, err
	}
	raw, err := os.ReadFile(matches[0])
	if err != nil {
		return schema.ReductionSummary{}, nil, fmt.Errorf("failed to read reduction summary: %w", err)
	}
	var summary schema.ReductionSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return summary, nil, fmt.Errorf("invalid reduction summary %s: %w", matches[0], err)
	}
	return summary, raw, nil
}

func datasetRow(run int, name, path string, res schema.ReductionResult) tnrparquet.DatasetRow {
	qMin, qMax := minMax(res.Q)
	rMin, rMax := minMax(res.R)
	return tnrparquet.DatasetRow{
		RunNumber: int64(run),
		Filename:  name,
		Filepath:  path,
		NPoints:   int64(res.NPoints()),
		Q:         res.Q,
		R:         res.R,
		DR:        res.DR,
		DQ:        res.DQ,
		QMin:      qMin,
		QMax:      qMax,
		RMin:      rMin,
		RMax:      rMax,
	}
}

func attachInterval(row *tnrparquet.DatasetRow, iv schema.Interval) {
	label := iv.Label
	kind := iv.Kind.IntervalType()
	start := iv.Start.Format(splitdoc.TimeLayout)
	end := iv.End.Format(splitdoc.TimeLayout)
	duration := iv.DurationSeconds
	row.IntervalLabel = &label
	row.IntervalType = &kind
	row.IntervalStart = &start
	row.IntervalEnd = &end
	row.DurationSeconds = &duration
	if iv.HoldIndex != nil {
		h := int64(*iv.HoldIndex)
		row.HoldIndex = &h
	}
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return slices.Min(values), slices.Max(values)
}

func compactJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// intervalsJSON extracts the intervals array of a split document verbatim.
func intervalsJSON(splitRaw []byte) string {
	var probe struct {
		Intervals json.RawMessage `json:"intervals"`
	}
	if err := json.Unmarshal(splitRaw, &probe); err != nil || probe.Intervals == nil {
		return "[]"
	}
	return compactJSON(probe.Intervals)
}
