package cmd

import (
	"github.com/huangsam/tnrpipe/core"
	"github.com/spf13/cobra"
)

// extractCmd builds the interval set from a directory of timing logs.
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Build time intervals from EIS timing logs",
	Long: `Parse every EIS timing log in --data-dir and build an ordered set of
measurement and hold intervals.

With --split-file the intervals are stored as a JSON split document and a
stage report is printed. Without it the intervals are printed instead.

Examples:
  # Preview per-file intervals
  tnrpipe extract --data-dir ./eis

  # One interval per frequency measurement, holds cut into 60s slices
  tnrpipe extract --data-dir ./eis --resolution per-frequency --hold-slice 60 --split-file split.json`,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return core.ExecuteExtract(cmd.Context(), cfg, runStore)
	},
}

// reduceCmd reduces the events of every interval in a split document.
var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Reduce neutron events for each interval",
	Long: `Read the split document, select the events recorded during each interval
and hand them to the reducer. Each interval yields one reflectivity file in
--reduced-dir, named after the interval label.

Hold intervals are skipped unless --include-holds is set. A summary document
recording every outcome is written next to the results.

Examples:
  tnrpipe reduce --split-file split.json --event-file events.parquet \
    --template-file template.xml --reduced-dir ./reduced --reducer "python reduce.py"`,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return core.ExecuteReduce(cmd.Context(), cfg, runStore)
	},
}

// packageCmd joins reduced curves with their intervals into Parquet tables.
var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Package reduced curves into a Parquet dataset",
	Long: `Join every reflectivity file in --reduced-dir with its interval from the
split document and write one Parquet table of curve points plus a metadata
table describing each interval.

Examples:
  # Inspect what would be packaged
  tnrpipe package --split-file split.json --reduced-dir ./reduced --validate-only

  # Write the dataset
  tnrpipe package --split-file split.json --reduced-dir ./reduced --package-file tnr.parquet`,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return core.ExecutePackage(cmd.Context(), cfg, runStore)
	},
}

// pipelineCmd runs extract, reduce and package in order.
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run extract, reduce and package in sequence",
	Long: `Run every stage against one configuration. The split document defaults to
<reduced-dir>/eis_intervals.json. The pipeline stops at the first stage that
fails.

Examples:
  tnrpipe pipeline --data-dir ./eis --event-file events.parquet \
    --template-file template.xml --reduced-dir ./reduced --reducer ./reduce.sh`,
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return core.ExecutePipeline(cmd.Context(), cfg, runStore)
	},
}
