// Package eislog parses EC-Lab timing logs (.mpt) into timed measurements.
package eislog

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/tnrpipe/schema"
	"golang.org/x/text/encoding/charmap"
)

const (
	acquisitionMarker = "Acquisition started on"
	headerCountMarker = "Nb header lines"
	headerCountScan   = 10
	timeColumnName    = "time/s"
	defaultTimeColumn = 5
	frequencyColumn   = 0
	acquisitionLayout = "01/02/2006 15:04:05"
	maxScanTokenSize  = 1 << 20
)

var (
	acquisitionPattern = regexp.MustCompile(`:\s*(\d{2}/\d{2}/\d{4}\s+\d{2}:\d{2}:\d{2}\.\d+)`)
	headerCountPattern = regexp.MustCompile(`:\s*(\d+)`)
)

// RowError reports a data row that could not be read as numbers. It is recoverable.
type RowError struct {
	File   string
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("skipped row %d of %s: %s", e.Row, e.File, e.Reason)
}

// Log is the parsed header of one timing log. It holds no row state, so
// Measurements may be called any number of times.
type Log struct {
	Path             string
	AcquisitionStart time.Time
	HeaderLines      int
	Columns          []string
	TimeColumn       int
	FrequencyColumn  int
}

// Open reads the header of the timing log at path.
func Open(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timing log: %w", err)
	}
	defer func() { _ = f.Close() }()

	header, nHeader, err := readHeader(newScanner(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	start, err := findAcquisitionStart(path, header)
	if err != nil {
		return nil, err
	}

	l := &Log{
		Path:             path,
		AcquisitionStart: start,
		HeaderLines:      nHeader,
		TimeColumn:       defaultTimeColumn,
		FrequencyColumn:  frequencyColumn,
	}
	if len(header) > 0 {
		l.Columns = strings.Split(strings.TrimSpace(header[len(header)-1]), "\t")
		if idx := slices.Index(l.Columns, timeColumnName); idx >= 0 {
			l.TimeColumn = idx
		}
	}
	return l, nil
}

// Filename returns the base name of the log.
func (l *Log) Filename() string {
	return filepath.Base(l.Path)
}

// Measurements yields the data rows of the log in file order. Each call re-reads
// the file. Rows that cannot be parsed yield a *RowError; rows whose elapsed time
// decreases yield a *schema.NonMonotonicTimeError. Both are skipped and iteration
// continues. A failure to open or read the file is yielded once and ends iteration.
func (l *Log) Measurements() iter.Seq2[schema.TimedMeasurement, error] {
	return func(yield func(schema.TimedMeasurement, error) bool) {
		f, err := os.Open(l.Path)
		if err != nil {
			yield(schema.TimedMeasurement{}, fmt.Errorf("failed to open timing log: %w", err))
			return
		}
		defer func() { _ = f.Close() }()

		sc := newScanner(f)
		for skipped := 0; skipped < l.HeaderLines; skipped++ {
			if !sc.Scan() {
				break
			}
		}

		prev := math.Inf(-1)
		row := -1
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			row++
			m, err := l.parseRow(line, row)
			if err != nil {
				if !yield(schema.TimedMeasurement{}, err) {
					return
				}
				continue
			}
			if m.ElapsedSeconds < prev {
				nm := &schema.NonMonotonicTimeError{File: l.Filename(), Row: row, Previous: prev, Elapsed: m.ElapsedSeconds}
				if !yield(schema.TimedMeasurement{}, nm) {
					return
				}
				continue
			}
			prev = m.ElapsedSeconds
			if !yield(m, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(schema.TimedMeasurement{}, fmt.Errorf("failed to read %s: %w", l.Path, err))
		}
	}
}

// Group collects every measurement of the log. Recoverable row problems are
// returned as warnings; err is set only when the file itself could not be read.
func (l *Log) Group() (group schema.MeasurementGroup, warnings []error, err error) {
	group = schema.MeasurementGroup{
		Filename:         l.Filename(),
		Label:            Label(l.Filename()),
		AcquisitionStart: l.AcquisitionStart,
	}
	for m, rowErr := range l.Measurements() {
		if rowErr != nil {
			if isRecoverable(rowErr) {
				warnings = append(warnings, rowErr)
				continue
			}
			return group, warnings, rowErr
		}
		group.Measurements = append(group.Measurements, m)
	}
	return group, warnings, nil
}

func (l *Log) parseRow(line string, row int) (schema.TimedMeasurement, error) {
	parts := splitRow(line)
	if len(parts) <= max(l.TimeColumn, l.FrequencyColumn) {
		return schema.TimedMeasurement{}, &RowError{File: l.Filename(), Row: row, Reason: fmt.Sprintf("only %d columns", len(parts))}
	}
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			v = math.NaN()
		}
		values[i] = v
	}
	elapsed, freq := values[l.TimeColumn], values[l.FrequencyColumn]
	if math.IsNaN(elapsed) || math.IsNaN(freq) {
		return schema.TimedMeasurement{}, &RowError{File: l.Filename(), Row: row, Reason: "non-numeric time or frequency"}
	}
	return schema.TimedMeasurement{
		Values:         values,
		FrequencyHz:    freq,
		ElapsedSeconds: elapsed,
		Row:            row,
	}, nil
}

func isRecoverable(err error) bool {
	switch err.(type) {
	case *RowError, *schema.NonMonotonicTimeError:
		return true
	}
	return false
}

// newScanner decodes Latin-1 bytes, which EC-Lab uses for units like "Ohm" and "µ".
func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(r))
	sc.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)
	return sc
}

// readHeader returns the header lines and the count of lines to skip before data.
// The count comes from "Nb header lines" when present; otherwise the header ends
// at the first row that starts with a number.
func readHeader(sc *bufio.Scanner) ([]string, int, error) {
	var lines []string
	declared := 0
	for sc.Scan() {
		line := sc.Text()
		if declared == 0 && len(lines) < headerCountScan && strings.HasPrefix(line, headerCountMarker) {
			if m := headerCountPattern.FindStringSubmatch(line); m != nil {
				declared, _ = strconv.Atoi(m[1])
			}
		}
		if declared > 0 {
			lines = append(lines, line)
			if len(lines) >= declared {
				return lines, declared, nil
			}
			continue
		}
		if looksNumeric(line) {
			return lines, len(lines), nil
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}
	return lines, len(lines), nil
}

func findAcquisitionStart(path string, header []string) (time.Time, error) {
	name := filepath.Base(path)
	for _, line := range header {
		if !strings.Contains(line, acquisitionMarker) {
			continue
		}
		m := acquisitionPattern.FindStringSubmatch(line)
		if m == nil {
			return time.Time{}, &schema.MalformedHeaderError{File: name, Reason: fmt.Sprintf("unparsable acquisition start %q", strings.TrimSpace(line))}
		}
		stamp := strings.Join(strings.Fields(m[1]), " ")
		t, err := time.Parse(acquisitionLayout, stamp)
		if err != nil {
			return time.Time{}, &schema.MalformedHeaderError{File: name, Reason: err.Error()}
		}
		return t, nil
	}
	return time.Time{}, &schema.MalformedHeaderError{File: name, Reason: "missing acquisition start line"}
}

func splitRow(line string) []string {
	if !strings.Contains(line, "\t") {
		return strings.Fields(line)
	}
	parts := strings.Split(line, "\t")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func looksNumeric(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(fields[0], 64)
	return err == nil
}
