package schema

import "time"

// LedgerStatus represents the status of the run ledger.
type LedgerStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalRuns     int              `json:"total_runs"`
	LastRunID     int64            `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	OldestRunTime time.Time        `json:"oldest_run_time"`
	TotalFailed   int              `json:"total_failed"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}

// RunRecord represents a row from the tnr_runs table.
type RunRecord struct {
	RunID         int64
	BatchID       string
	Stage         string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	Processed     int32
	Skipped       int32
	Failed        int32
	ConfigParams  *string
}

// OutcomeRecord represents a row from the tnr_interval_outcomes table.
type OutcomeRecord struct {
	RunID         int64
	IntervalLabel string
	Status        string
	Detail        *string
}
