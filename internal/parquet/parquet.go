// Package parquet provides the table layouts written by tnrpipe and generic
// helpers to read and write them using github.com/parquet-go/parquet-go.
package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangsam/tnrpipe/schema"
	"github.com/parquet-go/parquet-go"
)

// DatasetRow is one reduction result in the packaged main table.
// Q, R, dR and dQ are list columns so every row keeps its own curve length.
type DatasetRow struct {
	// RunNumber is the neutron run the result was reduced from
	RunNumber int64 `parquet:"run_number,snappy"`

	// Filename is the base name of the reduction-result file
	Filename string `parquet:"filename,snappy"`

	// Filepath is the path the result file was read from
	Filepath string `parquet:"filepath,snappy"`

	// NPoints is the number of points in the curve
	NPoints int64 `parquet:"n_points,snappy"`

	Q  []float64 `parquet:"Q,list"`
	R  []float64 `parquet:"R,list"`
	DR []float64 `parquet:"dR,list"`
	DQ []float64 `parquet:"dQ,list"`

	QMin float64 `parquet:"Q_min,snappy"`
	QMax float64 `parquet:"Q_max,snappy"`
	RMin float64 `parquet:"R_min,snappy"`
	RMax float64 `parquet:"R_max,snappy"`

	// Interval fields are null when the result matched no interval
	IntervalLabel   *string  `parquet:"interval_label,optional,snappy"`
	IntervalType    *string  `parquet:"interval_type,optional,snappy"`
	IntervalStart   *string  `parquet:"interval_start,optional,snappy"`
	IntervalEnd     *string  `parquet:"interval_end,optional,snappy"`
	DurationSeconds *float64 `parquet:"duration_seconds,optional,snappy"`
	HoldIndex       *int64   `parquet:"hold_index,optional,snappy"`
}

// ExperimentMetadata is the single row of the packaged metadata table.
type ExperimentMetadata struct {
	RunNumber            int64   `parquet:"run_number,snappy"`
	TotalDuration        float64 `parquet:"total_duration,snappy"`
	NIntervals           int64   `parquet:"n_intervals,snappy"`
	NReducedFiles        int64   `parquet:"n_reduced_files,snappy"`
	SourceDirectory      string  `parquet:"source_directory,snappy"`
	EISPattern           string  `parquet:"eis_pattern,snappy"`
	Resolution           string  `parquet:"resolution,snappy"`
	ReductionTemplateXML string  `parquet:"reduction_template_xml,snappy"`
	PackagedTimestamp    string  `parquet:"packaged_timestamp,snappy"`
	PackagerVersion      string  `parquet:"packager_version,snappy"`

	// Full provenance documents, stored verbatim as JSON text
	IntervalsJSON         string `parquet:"intervals_json,snappy"`
	SplitMetadataJSON     string `parquet:"split_metadata_json,snappy"`
	ReductionMetadataJSON string `parquet:"reduction_metadata_json,snappy"`
}

// Run represents a single pipeline run.
// This struct maps to the tnr_runs database table.
type Run struct {
	// RunID is the unique identifier for this run
	RunID int64 `parquet:"run_id,snappy"`

	// BatchID ties the stages of one pipeline invocation together
	BatchID string `parquet:"batch_id,snappy"`

	// Stage is extract, reduce or package
	Stage string `parquet:"stage,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	Processed int32 `parquet:"processed,snappy"`
	Skipped   int32 `parquet:"skipped,snappy"`
	Failed    int32 `parquet:"failed,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// Outcome represents the fate of one file or interval in a run.
// This struct maps to the tnr_interval_outcomes database table.
type Outcome struct {
	RunID         int64   `parquet:"run_id,snappy"`
	IntervalLabel string  `parquet:"interval_label,snappy"`
	Status        string  `parquet:"status,snappy"`
	Detail        *string `parquet:"detail,optional,snappy"`
}

// MetadataPath returns the metadata table path that accompanies a main table.
func MetadataPath(output string) string {
	return strings.TrimSuffix(output, ".parquet") + schema.MetadataSuffix
}

// WriteFile writes rows to a new Parquet file at path, replacing any existing file.
// The schema is derived from the struct tags of T.
func WriteFile[T any](path string, rows []T, options ...parquet.WriterOption) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := Encode(file, rows, options...); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	return nil
}

// Encode writes rows as a complete Parquet file to w.
func Encode[T any](w io.Writer, rows []T, options ...parquet.WriterOption) error {
	writer := parquet.NewGenericWriter[T](w, options...)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// ReadFile reads every row of the Parquet file at path.
func ReadFile[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[T](file)
	defer func() { _ = reader.Close() }()

	rows := make([]T, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows[:n], nil
}

// ConvertRunRecords converts schema.RunRecord to Run for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		result[i] = Run{
			RunID:         record.RunID,
			BatchID:       record.BatchID,
			Stage:         record.Stage,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			Processed:     record.Processed,
			Skipped:       record.Skipped,
			Failed:        record.Failed,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertOutcomeRecords converts schema.OutcomeRecord to Outcome for Parquet export.
func ConvertOutcomeRecords(records []schema.OutcomeRecord) []Outcome {
	result := make([]Outcome, len(records))
	for i, record := range records {
		result[i] = Outcome{
			RunID:         record.RunID,
			IntervalLabel: record.IntervalLabel,
			Status:        record.Status,
			Detail:        record.Detail,
		}
	}
	return result
}
