package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/internal/ledger"
	"github.com/huangsam/tnrpipe/internal/outwriter"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ledgerSettings reads the ledger backend and connection string without the
// full stage validation. An empty backend means sqlite for ledger commands.
func ledgerSettings() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}

	backend := schema.DatabaseBackend(strings.ToLower(viper.GetString("ledger-backend")))
	if backend == "" {
		backend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", "", fmt.Errorf("invalid ledger backend '%s'", backend)
	}
	connStr := viper.GetString("ledger-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// runsSetup opens the ledger for status, export and clear.
func runsSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := ledgerSettings()
	if err != nil {
		return err
	}
	cfg.LedgerBackend = backend
	cfg.LedgerDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return openLedger(backend, connStr)
}

// runsMigrateSetup resolves ledger settings without creating tables, so
// migrations can run on a fresh database.
func runsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := ledgerSettings()
	if err != nil {
		return err
	}
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetLedgerDBFilePath()
	}
	cfg.LedgerBackend = backend
	cfg.LedgerDBConnect = connStr
	return nil
}

// requireStore fails when the ledger is disabled.
func requireStore() (contract.RunStore, error) {
	if runStore == nil {
		return nil, fmt.Errorf("run ledger is disabled (backend %s)", cfg.LedgerBackend)
	}
	return runStore, nil
}

// runsCmd groups run ledger management.
//
// Note: runs subcommands skip the stage validation of sharedSetup; they only
// need the ledger settings.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage the run ledger",
	Long: `Manage the ledger of stage runs.

When --ledger-backend is set, every extract, reduce and package run is
recorded with its configuration, duration and per-interval outcomes.

Supported backends: SQLite (default for these commands), MySQL, PostgreSQL, or None

Subcommands:
  status  - Show ledger statistics
  export  - Export runs and outcomes to Parquet
  clear   - Remove all ledger data
  migrate - Run database schema migrations

Examples:
  tnrpipe runs status
  tnrpipe runs export --output-file ledger.parquet`,
}

// runsStatusCmd shows ledger status.
var runsStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display ledger statistics and connection details",
	PreRunE: runsSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := requireStore()
		if err != nil {
			return err
		}
		status, err := store.GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get ledger status: %w", err)
		}
		outwriter.PrintLedgerStatus(os.Stdout, status)
		return nil
	},
}

// runsExportCmd exports the ledger to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export runs and interval outcomes to Parquet files",
	Long: `Write the ledger to two Parquet files derived from --output-file:
<output-file>.runs.parquet and <output-file>.outcomes.parquet.

Examples:
  tnrpipe runs export --output-file ledger.parquet`,
	PreRunE: runsSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := requireStore()
		if err != nil {
			return err
		}
		files, err := ledger.Export(store, cfg.OutputFile, os.Stdout)
		if err != nil {
			return err
		}
		fmt.Printf("Runs written to %s\n", files.RunsFile)
		fmt.Printf("Outcomes written to %s\n", files.OutcomesFile)
		return nil
	},
}

// runsClearCmd clears the ledger.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all runs and interval outcomes",
	Long: `Delete every stored run and interval outcome.

WARNING: This action cannot be undone. Consider exporting data first.`,
	PreRunE: runsSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := requireStore()
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear ledger: %w", err)
		}
		fmt.Println("Ledger data cleared successfully.")
		return nil
	},
}

// runsMigrateCmd runs ledger schema migrations.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run ledger schema migrations",
	Long: `Apply or roll back the ledger schema.

Examples:
  # Migrate to the latest version
  tnrpipe runs migrate

  # Roll back everything
  tnrpipe runs migrate --target-version 0`,
	PreRunE: runsMigrateSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		result, err := ledger.Migrate(cfg.LedgerBackend, cfg.LedgerDBConnect, viper.GetInt("target-version"))
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println(result.String())
		return nil
	},
}
