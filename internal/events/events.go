// Package events provides timestamp-range access to neutron event data.
package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/huangsam/tnrpipe/internal/contract"
	tnrparquet "github.com/huangsam/tnrpipe/internal/parquet"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/parquet-go/parquet-go"
)

// Key/value metadata keys carried by an event file.
const (
	RunNumberKey = "run_number"
	DurationKey  = "duration"
)

const defaultBatchSize = 8192

// Record is one row of an event file.
type Record struct {
	PulseTimeNs int64   `parquet:"pulse_time_ns,snappy"`
	PixelID     int32   `parquet:"pixel_id,snappy"`
	TOF         float64 `parquet:"tof,snappy"`
}

func (r Record) event() schema.Event {
	return schema.Event{PulseTime: time.Unix(0, r.PulseTimeNs).UTC(), PixelID: r.PixelID, TOF: r.TOF}
}

func recordOf(e schema.Event) Record {
	return Record{PulseTimeNs: e.PulseTime.UnixNano(), PixelID: e.PixelID, TOF: e.TOF}
}

// ParquetStream reads events from a Parquet event file on demand.
type ParquetStream struct {
	path      string
	batchSize int
}

var _ contract.EventStream = &ParquetStream{}

// OpenParquet returns a stream over the event file at path.
func OpenParquet(path string) (*ParquetStream, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("event file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("event file %s is a directory", path)
	}
	return &ParquetStream{path: path, batchSize: defaultBatchSize}, nil
}

// Select scans the file in batches and keeps events with start <= t < end.
func (s *ParquetStream) Select(ctx context.Context, start, end time.Time) ([]schema.Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := parquet.NewGenericReader[Record](f)
	defer func() { _ = reader.Close() }()

	lo, hi := start.UnixNano(), end.UnixNano()
	buf := make([]Record, s.batchSize)
	var out []schema.Event
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := reader.Read(buf)
		for _, r := range buf[:n] {
			if r.PulseTimeNs >= lo && r.PulseTimeNs < hi {
				out = append(out, r.event())
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read events from %s: %w", s.path, err)
		}
	}
	slices.SortStableFunc(out, func(a, b schema.Event) int { return a.PulseTime.Compare(b.PulseTime) })
	return out, nil
}

// RunInfo reads the run number and duration recorded in the file metadata.
func (s *ParquetStream) RunInfo(_ context.Context) (schema.RunInfo, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return schema.RunInfo{}, fmt.Errorf("failed to open event file: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return schema.RunInfo{}, err
	}
	file, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return schema.RunInfo{}, fmt.Errorf("invalid event file %s: %w", s.path, err)
	}

	var info schema.RunInfo
	if v, ok := file.Lookup(RunNumberKey); ok {
		if info.RunNumber, err = strconv.Atoi(v); err != nil {
			return info, fmt.Errorf("invalid %s metadata %q: %w", RunNumberKey, v, err)
		}
	}
	if v, ok := file.Lookup(DurationKey); ok {
		if info.DurationSeconds, err = strconv.ParseFloat(v, 64); err != nil {
			return info, fmt.Errorf("invalid %s metadata %q: %w", DurationKey, v, err)
		}
	}
	return info, nil
}

// WriteParquet stores events and run info as an event file.
func WriteParquet(path string, evts []schema.Event, info schema.RunInfo) error {
	rows := make([]Record, len(evts))
	for i, e := range evts {
		rows[i] = recordOf(e)
	}
	return tnrparquet.WriteFile(path, rows,
		parquet.KeyValueMetadata(RunNumberKey, strconv.Itoa(info.RunNumber)),
		parquet.KeyValueMetadata(DurationKey, strconv.FormatFloat(info.DurationSeconds, 'g', -1, 64)),
	)
}

// SliceStream is an in-memory event stream.
type SliceStream struct {
	info   schema.RunInfo
	events []schema.Event
}

var _ contract.EventStream = &SliceStream{}

// NewSliceStream returns a stream over a sorted copy of evts.
func NewSliceStream(info schema.RunInfo, evts []schema.Event) *SliceStream {
	sorted := slices.Clone(evts)
	slices.SortStableFunc(sorted, func(a, b schema.Event) int { return a.PulseTime.Compare(b.PulseTime) })
	return &SliceStream{info: info, events: sorted}
}

// Select returns events with start <= t < end.
func (s *SliceStream) Select(ctx context.Context, start, end time.Time) ([]schema.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, _ := slices.BinarySearchFunc(s.events, start, func(e schema.Event, t time.Time) int {
		return e.PulseTime.Compare(t)
	})
	hi, _ := slices.BinarySearchFunc(s.events, end, func(e schema.Event, t time.Time) int {
		return e.PulseTime.Compare(t)
	})
	if hi < lo {
		hi = lo
	}
	return slices.Clone(s.events[lo:hi]), nil
}

// RunInfo returns the run info the stream was built with.
func (s *SliceStream) RunInfo(_ context.Context) (schema.RunInfo, error) {
	return s.info, nil
}
