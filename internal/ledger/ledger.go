// Package ledger records pipeline runs and per-item outcomes in a SQL database.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names for run tracking.
const (
	RunsTable     = "tnr_runs"
	OutcomesTable = "tnr_interval_outcomes"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Store implements contract.RunStore on top of database/sql.
type Store struct {
	db         *sql.DB
	backend    schema.DatabaseBackend
	driverName string
}

var _ contract.RunStore = &Store{} // Compile-time check

// NewStore opens the ledger for backend and creates its tables if needed.
// The none backend returns a store whose operations do nothing.
func NewStore(backend schema.DatabaseBackend, connStr string) (*Store, error) {
	if backend == schema.NoneBackend || backend == "" {
		return &Store{backend: schema.NoneBackend}, nil
	}
	db, driverName, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}

	// Ping to verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		var connDetail string
		switch backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = "Verify the database file is accessible."
		}
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", backend, err, connDetail)
	}

	if err := createTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}
	return &Store{db: db, backend: backend, driverName: driverName}, nil
}

// openDB opens (but does not ping) the database for backend.
func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, string, error) {
	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetLedgerDBFilePath()
		}
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
		return db, "sqlite", nil

	case schema.MySQLBackend:
		db, err := sql.Open("mysql", connStr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname?parseTime=true", err)
		}
		return db, "mysql", nil

	case schema.PostgreSQLBackend:
		db, err := sql.Open("pgx", connStr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}
		return db, "pgx", nil

	default:
		return nil, "", fmt.Errorf("unsupported backend: %s. Must be sqlite, mysql, postgresql, or none", backend)
	}
}

// createTables creates the run tracking tables.
func createTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{RunsTable, createRunsQuery(backend)},
		{OutcomesTable, createOutcomesQuery(backend)},
	}
	for _, table := range tables {
		if err := validateTableName(table.name); err != nil {
			return err
		}
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// createRunsQuery returns the CREATE TABLE query for tnr_runs.
func createRunsQuery(backend schema.DatabaseBackend) string {
	quoted := quoteTableName(RunsTable, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				batch_id VARCHAR(64) NOT NULL,
				stage VARCHAR(16) NOT NULL,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms INT,
				processed INT NOT NULL DEFAULT 0,
				skipped INT NOT NULL DEFAULT 0,
				failed INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quoted)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGSERIAL PRIMARY KEY,
				batch_id TEXT NOT NULL,
				stage TEXT NOT NULL,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms INT,
				processed INT NOT NULL DEFAULT 0,
				skipped INT NOT NULL DEFAULT 0,
				failed INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quoted)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER PRIMARY KEY AUTOINCREMENT,
				batch_id TEXT NOT NULL,
				stage TEXT NOT NULL,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				processed INTEGER NOT NULL DEFAULT 0,
				skipped INTEGER NOT NULL DEFAULT 0,
				failed INTEGER NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quoted)
	}
}

// createOutcomesQuery returns the CREATE TABLE query for tnr_interval_outcomes.
func createOutcomesQuery(backend schema.DatabaseBackend) string {
	quoted := quoteTableName(OutcomesTable, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				outcome_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				run_id BIGINT NOT NULL,
				interval_label VARCHAR(255) NOT NULL,
				status VARCHAR(16) NOT NULL,
				detail TEXT
			);
		`, quoted)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				outcome_id BIGSERIAL PRIMARY KEY,
				run_id BIGINT NOT NULL,
				interval_label TEXT NOT NULL,
				status TEXT NOT NULL,
				detail TEXT
			);
		`, quoted)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				outcome_id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id INTEGER NOT NULL,
				interval_label TEXT NOT NULL,
				status TEXT NOT NULL,
				detail TEXT
			);
		`, quoted)
	}
}

// disabled reports whether the store is a no-op.
func (s *Store) disabled() bool {
	return s.backend == schema.NoneBackend || s.db == nil
}

// BeginRun creates a new run record and returns its unique ID.
func (s *Store) BeginRun(stage schema.Stage, batchID string, startTime time.Time, configParams map[string]any) (int64, error) {
	if s.disabled() {
		return 0, nil
	}
	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quoted := quoteTableName(RunsTable, s.backend)
	var runID int64
	switch s.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (batch_id, stage, start_time, config_params) VALUES ($1, $2, $3, $4) RETURNING run_id`, quoted)
		err = s.db.QueryRow(query, batchID, string(stage), startTime, string(configJSON)).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (batch_id, stage, start_time, config_params) VALUES (?, ?, ?, ?)`, quoted)
		var result sql.Result
		result, err = s.db.Exec(query, batchID, string(stage), formatTime(startTime, s.backend), string(configJSON))
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// RecordOutcome stores the fate of one file or interval in a run.
func (s *Store) RecordOutcome(runID int64, outcome schema.ItemOutcome) error {
	if s.disabled() {
		return nil
	}
	var detail *string
	if outcome.Detail != "" {
		detail = &outcome.Detail
	}
	query := fmt.Sprintf(`INSERT INTO %s (run_id, interval_label, status, detail) VALUES (%s)`,
		quoteTableName(OutcomesTable, s.backend), placeholders(s.backend, 4))
	if _, err := s.db.Exec(query, runID, outcome.Name, string(outcome.Status), detail); err != nil {
		return fmt.Errorf("failed to insert outcome for %s: %w", outcome.Name, err)
	}
	return nil
}

// EndRun stores the completion time and counts of a run.
func (s *Store) EndRun(runID int64, endTime time.Time, report *schema.RunReport) error {
	if s.disabled() {
		return nil
	}
	quoted := quoteTableName(RunsTable, s.backend)

	// First, get the start_time to calculate duration
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, quoted, placeholders(s.backend, 1))
	startTime, err := s.scanTime(s.db.QueryRow(query, runID))
	if err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	durationMs := endTime.Sub(startTime).Milliseconds()

	var processed, skipped, failed int
	if report != nil {
		processed, skipped, failed = report.Processed, report.Skipped, report.Failed
	}

	var update string
	switch s.backend {
	case schema.PostgreSQLBackend:
		update = fmt.Sprintf(`UPDATE %s SET end_time = $1, run_duration_ms = $2, processed = $3, skipped = $4, failed = $5 WHERE run_id = $6`, quoted)
	default: // SQLite and MySQL
		update = fmt.Sprintf(`UPDATE %s SET end_time = ?, run_duration_ms = ?, processed = ?, skipped = ?, failed = ? WHERE run_id = ?`, quoted)
	}
	if _, err := s.db.Exec(update, formatTime(endTime, s.backend), durationMs, processed, skipped, failed, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// GetStatus returns status information about the ledger.
func (s *Store) GetStatus() (schema.LedgerStatus, error) {
	status := schema.LedgerStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.disabled() {
		return status, nil
	}
	runs := quoteTableName(RunsTable, s.backend)

	if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", runs)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		row := s.db.QueryRow(fmt.Sprintf("SELECT run_id FROM %s ORDER BY run_id DESC LIMIT 1", runs))
		if err := row.Scan(&status.LastRunID); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		last, err := s.scanTime(s.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id DESC LIMIT 1", runs)))
		if err != nil {
			return status, fmt.Errorf("failed to get last run time: %w", err)
		}
		status.LastRunTime = last
		oldest, err := s.scanTime(s.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", runs)))
		if err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		status.OldestRunTime = oldest

		if err := s.db.QueryRow(fmt.Sprintf("SELECT COALESCE(SUM(failed), 0) FROM %s", runs)).Scan(&status.TotalFailed); err != nil {
			return status, fmt.Errorf("failed to get total failures: %w", err)
		}
	}

	for _, table := range []string{RunsTable, OutcomesTable} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, s.backend))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllRuns retrieves all run records in ID order.
func (s *Store) GetAllRuns() ([]schema.RunRecord, error) {
	if s.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT run_id, batch_id, stage, start_time, end_time, run_duration_ms, processed, skipped, failed, config_params
		FROM %s ORDER BY run_id`, quoteTableName(RunsTable, s.backend))
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		switch s.backend {
		case schema.SQLiteBackend:
			var startStr string
			var endStr *string
			if err := rows.Scan(&record.RunID, &record.BatchID, &record.Stage, &startStr, &endStr, &record.RunDurationMs,
				&record.Processed, &record.Skipped, &record.Failed, &record.ConfigParams); err != nil {
				return nil, fmt.Errorf("failed to scan run: %w", err)
			}
			if record.StartTime, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
				return nil, fmt.Errorf("failed to parse start_time: %w", err)
			}
			if endStr != nil {
				end, err := time.Parse(time.RFC3339Nano, *endStr)
				if err != nil {
					return nil, fmt.Errorf("failed to parse end_time: %w", err)
				}
				record.EndTime = &end
			}
		default: // MySQL and PostgreSQL
			if err := rows.Scan(&record.RunID, &record.BatchID, &record.Stage, &record.StartTime, &record.EndTime, &record.RunDurationMs,
				&record.Processed, &record.Skipped, &record.Failed, &record.ConfigParams); err != nil {
				return nil, fmt.Errorf("failed to scan run: %w", err)
			}
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllOutcomes retrieves all outcome records in insertion order.
func (s *Store) GetAllOutcomes() ([]schema.OutcomeRecord, error) {
	if s.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT run_id, interval_label, status, detail FROM %s ORDER BY outcome_id`,
		quoteTableName(OutcomesTable, s.backend))
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.OutcomeRecord
	for rows.Next() {
		var record schema.OutcomeRecord
		if err := rows.Scan(&record.RunID, &record.IntervalLabel, &record.Status, &record.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return results, nil
}

// Clear removes every run and outcome.
func (s *Store) Clear() error {
	if s.disabled() {
		return nil
	}
	var errs []error
	for _, table := range []string{OutcomesTable, RunsTable} {
		if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", quoteTableName(table, s.backend))); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear %s: %w", table, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// scanTime reads a single time column that SQLite stores as text.
func (s *Store) scanTime(row *sql.Row) (time.Time, error) {
	if s.backend == schema.SQLiteBackend {
		var str string
		if err := row.Scan(&str); err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339Nano, str)
	}
	var t time.Time
	err := row.Scan(&t)
	return t, err
}

// quoteTableName quotes an identifier for the backend. Names are validated
// against tableNamePattern, so quoting only guards reserved words.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return "`" + name + "`"
	default:
		return `"` + name + `"`
	}
}

// validateTableName rejects identifiers that are not plain SQL names.
func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// placeholders returns n bind parameters in the backend's syntax.
func placeholders(backend schema.DatabaseBackend, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if backend == schema.PostgreSQLBackend {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	switch backend {
	case schema.SQLiteBackend:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return t
	}
}
