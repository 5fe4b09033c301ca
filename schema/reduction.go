package schema

import "time"

// Event is one timestamped detector event from the external event stream.
type Event struct {
	PulseTime time.Time
	PixelID   int32
	TOF       float64
}

// RunInfo describes the neutron run behind an event stream.
type RunInfo struct {
	RunNumber       int
	DurationSeconds float64
}

// ReductionConfig is the instrument configuration handed to a reducer untouched.
type ReductionConfig struct {
	TemplateFile string
	ScanIndex    int
	ThetaOffset  float64
	RunNumber    int
	WorkDir      string
}

// ReductionResult is the reflectivity curve reduced from one interval.
type ReductionResult struct {
	IntervalLabel string
	Q             []float64
	R             []float64
	DR            []float64
	DQ            []float64
	RunNumber     int
	ExtraMetadata map[string]any
}

// NPoints returns the curve length, or -1 when the columns disagree.
func (r ReductionResult) NPoints() int {
	n := len(r.Q)
	if len(r.R) != n || len(r.DR) != n || len(r.DQ) != n {
		return -1
	}
	return n
}

// ReductionOptions records how a reduction batch was configured.
type ReductionOptions struct {
	IntervalsFile      string   `json:"intervals_file"`
	EventFile          string   `json:"event_file"`
	TemplateFile       string   `json:"template_file"`
	OutputDir          string   `json:"output_dir"`
	ScanIndex          int      `json:"scan_index"`
	ThetaOffset        float64  `json:"theta_offset"`
	TZOffsetHours      float64  `json:"tz_offset"`
	IncludeHolds       bool     `json:"include_holds"`
	Workers            int      `json:"workers"`
	TaskTimeoutSeconds float64  `json:"task_timeout_seconds"`
	NIntervals         int      `json:"n_intervals"`
	ReducerCommand     []string `json:"reducer_command,omitempty"`
}

// SummaryInterval is the per-interval entry of a reduction summary.
type SummaryInterval struct {
	Label        string        `json:"label"`
	IntervalType string        `json:"interval_type"`
	Start        string        `json:"start"`
	End          string        `json:"end"`
	Status       OutcomeStatus `json:"status"`
	Error        string        `json:"error,omitempty"`
	NEvents      int           `json:"n_events"`
	OutputFile   string        `json:"output_file,omitempty"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
}

// ReductionSummary is the aggregate document written after a reduction batch.
type ReductionSummary struct {
	RunNumber    int               `json:"run_number"`
	BatchID      string            `json:"batch_id"`
	Duration     float64           `json:"duration"`
	NIntervals   int               `json:"n_intervals"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Options      ReductionOptions  `json:"options"`
	Intervals    []SummaryInterval `json:"intervals"`
	ReducedFiles []string          `json:"reduced_files"`
	Failures     map[string]string `json:"failures"`
}
