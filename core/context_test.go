package core

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestContextConcurrentAccess tests that context values can be safely accessed concurrently.
func TestContextConcurrentAccess(t *testing.T) {
	ctx := withSuppressReport(withBatchID(context.Background(), "batch-1"))

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			assert.True(t, shouldSuppressReport(ctx))
			assert.Equal(t, "batch-1", batchIDFromContext(ctx))
		})
	}
	wg.Wait()
}

func TestContextDefaults(t *testing.T) {
	ctx := context.Background()
	assert.False(t, shouldSuppressReport(ctx))

	id := batchIDFromContext(ctx)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, batchIDFromContext(ctx), "each call without a batch ID gets a fresh one")

	assert.NotEqual(t, "", batchIDFromContext(withBatchID(ctx, "")))
}
