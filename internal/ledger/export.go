package ledger

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/internal/parquet"
)

// ExportFiles names the files written by Export.
type ExportFiles struct {
	RunsFile     string
	OutcomesFile string
}

// Export writes every run and outcome in store to Parquet files named after
// outputFile. Progress messages go to w.
func Export(store contract.RunStore, outputFile string, w io.Writer) (ExportFiles, error) {
	var files ExportFiles
	if outputFile == "" {
		return files, errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus()
	if err != nil {
		return files, fmt.Errorf("failed to get ledger status: %w", err)
	}
	if status.TotalRuns == 0 {
		return files, errors.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total outcome records: %d\n", status.TableSizes[OutcomesTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return files, fmt.Errorf("failed to retrieve runs: %w", err)
	}
	outcomes, err := store.GetAllOutcomes()
	if err != nil {
		return files, fmt.Errorf("failed to retrieve outcomes: %w", err)
	}

	files.RunsFile = outputFile + ".runs.parquet"
	runRows := parquet.ConvertRunRecords(runs)
	if err := parquet.WriteFile(files.RunsFile, runRows); err != nil {
		return files, fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runRows), files.RunsFile)

	files.OutcomesFile = outputFile + ".outcomes.parquet"
	outcomeRows := parquet.ConvertOutcomeRecords(outcomes)
	if err := parquet.WriteFile(files.OutcomesFile, outcomeRows); err != nil {
		return files, fmt.Errorf("failed to write outcomes: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d outcome records to: %s\n", len(outcomeRows), files.OutcomesFile)
	return files, nil
}
