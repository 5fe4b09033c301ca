// Package cmd defines the command-line interface for tnrpipe.
package cmd

import (
	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(reduceCmd)
	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("split-file", "", "Path of the JSON split document")
	rootCmd.PersistentFlags().String("template-file", "", "Path of the reduction template")
	rootCmd.PersistentFlags().String("reduced-dir", "", "Directory holding reduced reflectivity files")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("ledger-backend", "", "Run ledger backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("ledger-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname?parseTime=true)")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Stage flags share names across commands, so sharedSetup binds the
	// flags of the running command only.

	// Extraction flags are shared by extract and pipeline
	for _, c := range []*cobra.Command{extractCmd, pipelineCmd} {
		c.Flags().String("data-dir", "", "Directory of EIS timing logs")
		c.Flags().String("pattern", schema.DefaultPattern, "Glob pattern for timing logs")
		c.Flags().String("exclude", schema.DefaultExclude, "Skip timing logs whose name contains this text")
		c.Flags().String("resolution", string(schema.PerFile), "Interval resolution: per-file or per-frequency")
		c.Flags().String("gap-tolerance", "0", "Gaps up to this long get no hold interval (seconds or duration)")
		c.Flags().String("hold-slice", "0", "Cut hold intervals into slices of this length (0 = whole gap)")
	}

	// Reduction flags are shared by reduce and pipeline
	for _, c := range []*cobra.Command{reduceCmd, pipelineCmd} {
		c.Flags().String("event-file", "", "Parquet file of neutron events")
		c.Flags().String("reducer", "", "External reducer command, invoked once per interval")
		c.Flags().Bool("include-holds", false, "Reduce hold intervals as well as measurements")
		c.Flags().Int("workers", contract.DefaultWorkers, "Number of concurrent reductions")
		c.Flags().String("task-timeout", contract.DefaultTaskTimeout.String(), "Deadline for one interval reduction")
		c.Flags().Float64("tz-offset", contract.DefaultTZOffsetHours, "Hours added to timing log clock to reach event clock")
		c.Flags().Int("scan-index", 0, "Scan index passed to the reducer")
		c.Flags().Float64("theta-offset", 0, "Theta offset passed to the reducer")
		c.Flags().Int("run-number", 0, "Override the run number from the event metadata")
	}

	// Packaging flags are shared by package and pipeline
	for _, c := range []*cobra.Command{packageCmd, pipelineCmd} {
		c.Flags().String("package-file", "", "Output Parquet file (default <reduced-dir>/"+schema.DefaultPackageFile+")")
		c.Flags().Bool("validate-only", false, "Check inputs and report row counts without writing files")
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
