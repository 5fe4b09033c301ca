package ledger

import (
	"time"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/stretchr/testify/mock"
)

// MockRunStore is a mock implementation of contract.RunStore.
type MockRunStore struct {
	mock.Mock
}

var _ contract.RunStore = &MockRunStore{} // Compile-time check

// BeginRun mocks the BeginRun method.
func (m *MockRunStore) BeginRun(stage schema.Stage, batchID string, startTime time.Time, configParams map[string]any) (int64, error) {
	args := m.Called(stage, batchID, startTime, configParams)
	return args.Get(0).(int64), args.Error(1)
}

// RecordOutcome mocks the RecordOutcome method.
func (m *MockRunStore) RecordOutcome(runID int64, outcome schema.ItemOutcome) error {
	args := m.Called(runID, outcome)
	return args.Error(0)
}

// EndRun mocks the EndRun method.
func (m *MockRunStore) EndRun(runID int64, endTime time.Time, report *schema.RunReport) error {
	args := m.Called(runID, endTime, report)
	return args.Error(0)
}

// GetStatus mocks the GetStatus method.
func (m *MockRunStore) GetStatus() (schema.LedgerStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.LedgerStatus), args.Error(1)
}

// GetAllRuns mocks the GetAllRuns method.
func (m *MockRunStore) GetAllRuns() ([]schema.RunRecord, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schema.RunRecord), args.Error(1)
}

// GetAllOutcomes mocks the GetAllOutcomes method.
func (m *MockRunStore) GetAllOutcomes() ([]schema.OutcomeRecord, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schema.OutcomeRecord), args.Error(1)
}

// Clear mocks the Clear method.
func (m *MockRunStore) Clear() error {
	args := m.Called()
	return args.Error(0)
}

// Close mocks the Close method.
func (m *MockRunStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
