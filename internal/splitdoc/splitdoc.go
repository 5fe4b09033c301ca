// Package splitdoc persists an IntervalSet as the JSON split document shared by
// the reduction driver and the packager.
package splitdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangsam/tnrpipe/schema"
)

// TimeLayout is the ISO-8601 form used for interval bounds. Trailing zero
// fractional digits are dropped, so whole milliseconds print as ".521".
const TimeLayout = "2006-01-02T15:04:05.999999999"

// Document is the on-disk form of an IntervalSet.
type Document struct {
	SourceDirectory     string     `json:"source_directory"`
	Pattern             string     `json:"pattern"`
	Resolution          string     `json:"resolution"`
	NIntervals          int        `json:"n_intervals"`
	GapToleranceSeconds float64    `json:"gap_tolerance_seconds"`
	CreatedAt           string     `json:"created_at,omitempty"`
	Intervals           []Interval `json:"intervals"`
}

// Interval is the on-disk form of one interval.
type Interval struct {
	Label            string   `json:"label"`
	Filename         string   `json:"filename,omitempty"`
	Start            string   `json:"start"`
	End              string   `json:"end"`
	DurationSeconds  float64  `json:"duration_seconds"`
	IntervalType     string   `json:"interval_type"`
	Kind             string   `json:"kind"`
	HoldIndex        *int     `json:"hold_index,omitempty"`
	SourceIndex      *int     `json:"source_index,omitempty"`
	FrequencyHz      *float64 `json:"frequency_hz,omitempty"`
	MeasurementIndex *int     `json:"measurement_index,omitempty"`
	NFrequencies     *int     `json:"n_frequencies,omitempty"`
}

// FromSet converts an IntervalSet into its document form.
func FromSet(set schema.IntervalSet) Document {
	doc := Document{
		SourceDirectory:     set.SourceDirectory,
		Pattern:             set.Pattern,
		Resolution:          string(set.Resolution),
		NIntervals:          len(set.Intervals),
		GapToleranceSeconds: set.GapTolerance.Seconds(),
		Intervals:           make([]Interval, len(set.Intervals)),
	}
	if !set.CreatedAt.IsZero() {
		doc.CreatedAt = set.CreatedAt.UTC().Format(time.RFC3339)
	}
	for i, iv := range set.Intervals {
		doc.Intervals[i] = Interval{
			Label:            iv.Label,
			Filename:         iv.Filename,
			Start:            iv.Start.Format(TimeLayout),
			End:              iv.End.Format(TimeLayout),
			DurationSeconds:  iv.DurationSeconds,
			IntervalType:     iv.Kind.IntervalType(),
			Kind:             string(iv.Kind),
			HoldIndex:        iv.HoldIndex,
			SourceIndex:      iv.SourceIndex,
			FrequencyHz:      iv.FrequencyHz,
			MeasurementIndex: iv.MeasurementIndex,
			NFrequencies:     iv.NMeasurements,
		}
	}
	return doc
}

// ToSet converts a document back into an IntervalSet.
func (d Document) ToSet() (schema.IntervalSet, error) {
	set := schema.IntervalSet{
		SourceDirectory: d.SourceDirectory,
		Pattern:         d.Pattern,
		Resolution:      schema.Resolution(d.Resolution),
		GapTolerance:    time.Duration(d.GapToleranceSeconds * float64(time.Second)),
		Intervals:       make([]schema.Interval, 0, len(d.Intervals)),
	}
	if set.Resolution == "" {
		set.Resolution = schema.PerFile
	}
	if _, ok := schema.ValidResolutions[set.Resolution]; !ok {
		return set, fmt.Errorf("unknown resolution %q", d.Resolution)
	}
	if d.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339, d.CreatedAt)
		if err != nil {
			return set, fmt.Errorf("invalid created_at: %w", err)
		}
		set.CreatedAt = created
	}

	for i, di := range d.Intervals {
		start, err := ParseTime(di.Start)
		if err != nil {
			return set, fmt.Errorf("interval %d (%s): invalid start: %w", i, di.Label, err)
		}
		end, err := ParseTime(di.End)
		if err != nil {
			return set, fmt.Errorf("interval %d (%s): invalid end: %w", i, di.Label, err)
		}
		label := di.Label
		if label == "" {
			label = di.Filename
		}
		if label == "" {
			label = fmt.Sprintf("interval_%d", i)
		}
		set.Intervals = append(set.Intervals, schema.Interval{
			Label:            label,
			Kind:             kindOf(di),
			Start:            start,
			End:              end,
			DurationSeconds:  di.DurationSeconds,
			SourceIndex:      di.SourceIndex,
			Filename:         di.Filename,
			FrequencyHz:      di.FrequencyHz,
			MeasurementIndex: di.MeasurementIndex,
			NMeasurements:    di.NFrequencies,
			HoldIndex:        di.HoldIndex,
		})
	}
	return set, nil
}

// kindOf accepts documents that only carry interval_type.
func kindOf(di Interval) schema.IntervalKind {
	switch {
	case strings.EqualFold(di.Kind, string(schema.HoldKind)), di.IntervalType == "hold":
		return schema.HoldKind
	default:
		return schema.MeasurementKind
	}
}

// ParseTime parses an interval bound with or without fractional seconds.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse datetime %q", s)
}

// Marshal encodes an IntervalSet as an indented split document.
func Marshal(set schema.IntervalSet) ([]byte, error) {
	data, err := json.MarshalIndent(FromSet(set), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode split document: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a split document. A document without intervals is an
// *schema.EmptyIntervalSetError.
func Unmarshal(data []byte) (schema.IntervalSet, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return schema.IntervalSet{}, fmt.Errorf("failed to decode split document: %w", err)
	}
	if len(doc.Intervals) == 0 {
		return schema.IntervalSet{}, &schema.EmptyIntervalSetError{}
	}
	return doc.ToSet()
}

// Read loads the split document at path.
func Read(path string) (schema.IntervalSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.IntervalSet{}, fmt.Errorf("failed to read split document: %w", err)
	}
	set, err := Unmarshal(data)
	if err != nil {
		var empty *schema.EmptyIntervalSetError
		if errors.As(err, &empty) {
			empty.Path = path
			return set, empty
		}
		return set, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Write stores set at path atomically: the document is written to a temporary
// file in the same directory and renamed over the destination.
func Write(path string, set schema.IntervalSet) error {
	if len(set.Intervals) == 0 {
		return &schema.EmptyIntervalSetError{Path: path}
	}
	data, err := Marshal(set)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary split document: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write split document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync split document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close split document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move split document into place: %w", err)
	}
	return nil
}
