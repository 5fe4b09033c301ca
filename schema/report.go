package schema

import "time"

// ItemOutcome is the fate of one file, interval or result within a run.
type ItemOutcome struct {
	Name   string        `json:"name"`
	Status OutcomeStatus `json:"status"`
	Detail string        `json:"detail,omitempty"`
}

// RunReport counts what a pipeline stage processed, skipped and failed.
type RunReport struct {
	Stage     Stage         `json:"stage"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Warnings  int           `json:"warnings"`
	Output    string        `json:"output,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Items     []ItemOutcome `json:"items"`
}

// NewRunReport creates an empty report for the given stage.
func NewRunReport(stage Stage) *RunReport {
	return &RunReport{Stage: stage}
}

// Add records one item and bumps the matching counter.
func (r *RunReport) Add(name string, status OutcomeStatus, detail string) {
	switch status {
	case OutcomeOK:
		r.Processed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	case OutcomeWarning:
		// Warnings still count as processed items.
		r.Processed++
		r.Warnings++
	}
	r.Items = append(r.Items, ItemOutcome{Name: name, Status: status, Detail: detail})
}

// Total returns the number of items seen.
func (r *RunReport) Total() int {
	return r.Processed + r.Skipped + r.Failed
}

// Failures returns only the failed items.
func (r *RunReport) Failures() []ItemOutcome {
	var out []ItemOutcome
	for _, it := range r.Items {
		if it.Status == OutcomeFailed {
			out = append(out, it)
		}
	}
	return out
}
