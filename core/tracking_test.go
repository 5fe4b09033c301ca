package core

import (
	"errors"
	"testing"
	"time"

	"github.com/huangsam/tnrpipe/internal/ledger"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRunTracker_NilStore(t *testing.T) {
	tracker := beginTracking(nil, schema.ExtractStage, "b", nil)
	assert.NotPanics(t, func() { tracker.finish(schema.NewRunReport(schema.ExtractStage)) })
}

func TestRunTracker_OutcomeErrorsDoNotStopEndRun(t *testing.T) {
	store := &ledger.MockRunStore{}
	store.On("BeginRun", schema.PackageStage, "b", mock.Anything, mock.Anything).Return(int64(3), nil)
	store.On("RecordOutcome", int64(3), mock.Anything).Return(errors.New("disk full"))
	store.On("EndRun", int64(3), mock.Anything, mock.Anything).Return(nil)

	report := schema.NewRunReport(schema.PackageStage)
	report.Add("r1_a.txt", schema.OutcomeOK, "")
	report.Add("r1_b.txt", schema.OutcomeFailed, "schema mismatch")

	tracker := beginTracking(store, schema.PackageStage, "b", map[string]any{})
	tracker.finish(report)

	store.AssertNumberOfCalls(t, "RecordOutcome", 2)
	store.AssertCalled(t, "EndRun", int64(3), mock.AnythingOfType("time.Time"), report)
}

func TestConfigParams(t *testing.T) {
	cfg := testConfig(t)
	cfg.TZOffset = 5 * time.Hour

	extract := configParams(cfg, schema.ExtractStage)
	assert.Equal(t, "extract", extract["stage"])
	assert.Equal(t, "per-file", extract["resolution"])
	assert.NotContains(t, extract, "workers")

	reduce := configParams(cfg, schema.ReduceStage)
	assert.Equal(t, 2, reduce["workers"])
	assert.InDelta(t, 5.0, reduce["tz_offset_hours"], 1e-9)

	pkg := configParams(cfg, schema.PackageStage)
	assert.Equal(t, false, pkg["validate_only"])
}
