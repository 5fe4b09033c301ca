package events

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/tnrpipe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 4, 20, 15, 55, 0, 0, time.UTC)

func sampleEvents(n int) []schema.Event {
	out := make([]schema.Event, n)
	// Written in reverse so readers cannot rely on file order.
	for i := range n {
		out[n-1-i] = schema.Event{PulseTime: base.Add(time.Duration(i) * 100 * time.Millisecond), PixelID: int32(i), TOF: float64(i) * 1.5}
	}
	return out
}

func TestSliceStream_HalfOpen(t *testing.T) {
	s := NewSliceStream(schema.RunInfo{RunNumber: 218389}, sampleEvents(100))
	ctx := context.Background()

	first, err := s.Select(ctx, base, base.Add(time.Second))
	require.NoError(t, err)
	second, err := s.Select(ctx, base.Add(time.Second), base.Add(2*time.Second))
	require.NoError(t, err)

	assert.Len(t, first, 10)
	assert.Len(t, second, 10)
	assert.Equal(t, int32(0), first[0].PixelID)
	assert.Equal(t, int32(10), second[0].PixelID, "event at the shared boundary belongs to the later window")

	none, err := s.Select(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)

	inverted, err := s.Select(ctx, base.Add(2*time.Second), base)
	require.NoError(t, err)
	assert.Empty(t, inverted)

	info, err := s.RunInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 218389, info.RunNumber)
}

func TestSliceStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSliceStream(schema.RunInfo{}, sampleEvents(3)).Select(ctx, base, base.Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParquetStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.parquet")
	require.NoError(t, WriteParquet(path, sampleEvents(1000), schema.RunInfo{RunNumber: 218389, DurationSeconds: 3600.5}))

	s, err := OpenParquet(path)
	require.NoError(t, err)
	s.batchSize = 64 // force several batches

	ctx := context.Background()
	got, err := s.Select(ctx, base.Add(10*time.Second), base.Add(20*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 100)
	assert.True(t, got[0].PulseTime.Equal(base.Add(10*time.Second)))
	assert.Equal(t, int32(100), got[0].PixelID)
	assert.InDelta(t, 150.0, got[0].TOF, 1e-9)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].PulseTime.Before(got[i-1].PulseTime))
	}

	total := 0
	for w := range 100 {
		sel, err := s.Select(ctx, base.Add(time.Duration(w)*time.Second), base.Add(time.Duration(w+1)*time.Second))
		require.NoError(t, err)
		total += len(sel)
	}
	assert.Equal(t, 1000, total, "adjacent windows must not double count")

	info, err := s.RunInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 218389, info.RunNumber)
	assert.InDelta(t, 3600.5, info.DurationSeconds, 1e-9)
}

func TestOpenParquet_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenParquet(filepath.Join(dir, "missing.parquet"))
	assert.Error(t, err)
	_, err = OpenParquet(dir)
	assert.ErrorContains(t, err, "is a directory")
}
