package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/internal/splitdoc"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintIntervals outputs an interval set. JSON output is the split document itself.
func PrintIntervals(set schema.IntervalSet, cfg *contract.Config) error {
	fmtFloat := createFormatter(cfg.Precision)
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, splitdoc.FromSet(set))
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeIntervalsCSV(w, set, fmtFloat)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeIntervalsTable(w, set, cfg, fmtFloat)
		}, "Wrote table")
	}
	return nil
}

func intervalRow(i int, iv schema.Interval, fmtFloat func(float64) string) []string {
	return []string{
		strconv.Itoa(i + 1),
		iv.Label,
		iv.Kind.IntervalType(),
		iv.Start.Format(splitdoc.TimeLayout),
		iv.End.Format(splitdoc.TimeLayout),
		fmtFloat(iv.DurationSeconds),
	}
}

func writeIntervalsTable(w io.Writer, set schema.IntervalSet, cfg *contract.Config, fmtFloat func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Label", "Type", "Start", "End", "Duration (s)"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	maxWidth := ColumnWidth(cfg)
	data := make([][]string, 0, len(set.Intervals))
	for i, iv := range set.Intervals {
		row := intervalRow(i, iv, fmtFloat)
		row[1] = contract.TruncatePath(row[1], maxWidth)
		data = append(data, row)
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	first, last := set.Span()
	_, err := fmt.Fprintf(w, "%d intervals (%d measurements, %d holds, %s) spanning %s to %s\n",
		len(set.Intervals), len(set.Measurements()), len(set.Holds()), set.Resolution,
		first.Format(splitdoc.TimeLayout), last.Format(splitdoc.TimeLayout))
	return err
}

func writeIntervalsCSV(w io.Writer, set schema.IntervalSet, fmtFloat func(float64) string) error {
	header := []string{"index", "label", "interval_type", "start", "end", "duration_seconds"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, iv := range set.Intervals {
			if err := cw.Write(intervalRow(i, iv, fmtFloat)); err != nil {
				return err
			}
		}
		return nil
	})
}
