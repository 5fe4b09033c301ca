package core

import (
	"fmt"
	"time"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/schema"
)

// runTracker records one stage in the run ledger. A nil store disables tracking,
// and ledger failures are logged without interrupting the stage.
type runTracker struct {
	store contract.RunStore
	runID int64
}

func beginTracking(store contract.RunStore, stage schema.Stage, batchID string, params map[string]any) *runTracker {
	t := &runTracker{store: store}
	if store == nil {
		return t
	}
	id, err := store.BeginRun(stage, batchID, time.Now(), params)
	if err != nil {
		contract.LogWarn("Run tracking initialization failed", err)
		t.store = nil
		return t
	}
	t.runID = id
	return t
}

func (t *runTracker) finish(report *schema.RunReport) {
	if t.store == nil || t.runID <= 0 {
		return
	}
	for _, item := range report.Items {
		if err := t.store.RecordOutcome(t.runID, item); err != nil {
			logTrackingError("RecordOutcome", item.Name, err)
		}
	}
	if err := t.store.EndRun(t.runID, time.Now(), report); err != nil {
		logTrackingError("EndRun", string(report.Stage), err)
	}
}

// logTrackingError logs ledger errors to stderr without disrupting the stage.
func logTrackingError(operation, name string, err error) {
	contract.LogWarn(fmt.Sprintf("Run tracking failed for %s on %s", operation, name), err)
}

// configParams is the configuration snapshot stored with each run.
func configParams(cfg *contract.Config, stage schema.Stage) map[string]any {
	params := map[string]any{"stage": string(stage)}
	switch stage {
	case schema.ExtractStage:
		params["data_dir"] = cfg.DataDir
		params["pattern"] = cfg.Pattern
		params["exclude"] = cfg.Exclude
		params["resolution"] = string(cfg.Resolution)
		params["gap_tolerance"] = cfg.GapTolerance.String()
		params["hold_slice"] = cfg.HoldSlice.String()
		params["split_file"] = cfg.SplitFile
	case schema.ReduceStage:
		params["split_file"] = cfg.SplitFile
		params["event_file"] = cfg.EventFile
		params["template_file"] = cfg.TemplateFile
		params["reduced_dir"] = cfg.ReducedDir
		params["workers"] = cfg.Workers
		params["task_timeout"] = cfg.TaskTimeout.String()
		params["tz_offset_hours"] = cfg.TZOffset.Hours()
		params["include_holds"] = cfg.IncludeHolds
	case schema.PackageStage:
		params["split_file"] = cfg.SplitFile
		params["reduced_dir"] = cfg.ReducedDir
		params["template_file"] = cfg.TemplateFile
		params["package_file"] = cfg.PackageFile
		params["validate_only"] = cfg.ValidateOnly
	}
	return params
}
