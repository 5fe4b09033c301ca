package reducer

import (
	"context"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/stretchr/testify/mock"
)

// MockReducer is a mock implementation of contract.Reducer.
type MockReducer struct {
	mock.Mock
}

var _ contract.Reducer = &MockReducer{} // Compile-time check

// Reduce mocks the Reduce method.
func (m *MockReducer) Reduce(ctx context.Context, interval schema.Interval, events []schema.Event, cfg schema.ReductionConfig) (schema.ReductionResult, error) {
	args := m.Called(ctx, interval, events, cfg)
	return args.Get(0).(schema.ReductionResult), args.Error(1)
}
