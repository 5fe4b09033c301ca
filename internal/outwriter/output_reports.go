package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintRunReports outputs stage reports, dispatching based on the output format configured.
func PrintRunReports(reports []*schema.RunReport, cfg *contract.Config) error {
	if len(reports) == 0 {
		return nil
	}
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, reports)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeReportsCSV(w, reports)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeReportsTable(w, reports, cfg)
		}, "Wrote table")
	}
	return nil
}

// writeReportsTable writes one table with a row per item and a summary line per stage.
func writeReportsTable(w io.Writer, reports []*schema.RunReport, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Stage", "Item", "Status", "Detail"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignLeft
	})

	maxWidth := ColumnWidth(cfg)
	var data [][]string
	for _, r := range reports {
		for _, item := range r.Items {
			status := string(item.Status)
			if cfg.UseColors {
				status = contract.GetColorStatus(item.Status)
			}
			data = append(data, []string{
				string(r.Stage),
				contract.TruncatePath(item.Name, maxWidth),
				status,
				truncateDetail(item.Detail, maxWidth),
			})
		}
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, r := range reports {
		line := fmt.Sprintf("%s: %d processed, %d skipped, %d failed, %d warnings in %v",
			r.Stage, r.Processed, r.Skipped, r.Failed, r.Warnings, r.Duration.Round(1e6))
		if r.Output != "" {
			line += " -> " + r.Output
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// writeReportsCSV writes one record per item.
func writeReportsCSV(w io.Writer, reports []*schema.RunReport) error {
	header := []string{"stage", "item", "status", "detail", "stage_processed", "stage_skipped", "stage_failed"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range reports {
			for _, item := range r.Items {
				rec := []string{
					string(r.Stage),
					item.Name,
					string(item.Status),
					item.Detail,
					strconv.Itoa(r.Processed),
					strconv.Itoa(r.Skipped),
					strconv.Itoa(r.Failed),
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// truncateDetail keeps the head of a message, unlike paths which keep the tail.
func truncateDetail(detail string, maxWidth int) string {
	runes := []rune(detail)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return detail
}
