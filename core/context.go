package core

import (
	"context"

	"github.com/google/uuid"
)

// Context keys for pipeline options
type contextKey string

const (
	batchIDKey        contextKey = "batchID"
	suppressReportKey contextKey = "suppressReport"
)

// withBatchID sets the batch ID shared by every stage of one invocation
func withBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey, id)
}

// batchIDFromContext returns the batch ID from context, or a fresh one
func batchIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(batchIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// withSuppressReport stops a stage from printing its own report
func withSuppressReport(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressReportKey, true)
}

// shouldSuppressReport returns whether reports should be suppressed from context
func shouldSuppressReport(ctx context.Context) bool {
	suppress, ok := ctx.Value(suppressReportKey).(bool)
	return ok && suppress
}
