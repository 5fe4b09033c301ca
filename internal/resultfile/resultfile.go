// Package resultfile reads and writes reduction-result files: four
// whitespace-delimited numeric columns (Q, R, dR, dQ) with one header line.
package resultfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/huangsam/tnrpipe/schema"
)

// Header is the line written above the data rows.
const Header = "# Q R dR dQ"

const columns = 4

var (
	runPrefix    = regexp.MustCompile(`^r\d+_`)
	unsafeLabels = strings.NewReplacer(",", "_", " ", "_")
)

// FileName returns the result file name for an interval of a run.
func FileName(run int, label string) string {
	return fmt.Sprintf("r%d_%s.txt", run, unsafeLabels.Replace(label))
}

// LabelFromFilename recovers the interval label from a result file name.
func LabelFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), ".txt")
	return runPrefix.ReplaceAllString(base, "")
}

// Read parses the result file at path.
func Read(path string) (schema.ReductionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return schema.ReductionResult{}, fmt.Errorf("failed to open result file: %w", err)
	}
	defer func() { _ = f.Close() }()

	res, err := Decode(f)
	var mismatch *schema.SchemaMismatchError
	if errors.As(err, &mismatch) {
		mismatch.File = path
	}
	if err != nil {
		return res, err
	}
	res.IntervalLabel = LabelFromFilename(path)
	return res, nil
}

// Decode parses result rows from r. Comment lines and a leading
// non-numeric header line are ignored.
func Decode(r io.Reader) (schema.ReductionResult, error) {
	var res schema.ReductionResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	headerSkipped := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		values, err := parseRow(fields)
		if err != nil {
			if !headerSkipped && len(res.Q) == 0 && !looksNumeric(fields[0]) {
				// column header without a leading '#'
				headerSkipped = true
				continue
			}
			return res, &schema.SchemaMismatchError{Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		res.Q = append(res.Q, values[0])
		res.R = append(res.R, values[1])
		res.DR = append(res.DR, values[2])
		res.DQ = append(res.DQ, values[3])
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("failed to read result rows: %w", err)
	}
	if len(res.Q) == 0 {
		return res, &schema.SchemaMismatchError{Reason: "no data rows"}
	}
	return res, nil
}

func parseRow(fields []string) ([columns]float64, error) {
	var out [columns]float64
	if len(fields) != columns {
		return out, fmt.Errorf("expected %d columns, found %d", columns, len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return out, fmt.Errorf("column %d: %q is not numeric", i+1, f)
		}
		out[i] = v
	}
	return out, nil
}

func looksNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Encode writes res to w with one header line.
func Encode(w io.Writer, res schema.ReductionResult) error {
	n := res.NPoints()
	if n < 0 {
		return &schema.SchemaMismatchError{File: res.IntervalLabel, Reason: "columns have different lengths"}
	}
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, Header); err != nil {
		return err
	}
	for i := range n {
		if _, err := fmt.Fprintf(bw, "%.18e %.18e %.18e %.18e\n", res.Q[i], res.R[i], res.DR[i], res.DQ[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Write stores res at path.
func Write(path string, res schema.ReductionResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file: %w", err)
	}
	if err := Encode(f, res); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
