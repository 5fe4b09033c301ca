package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/internal/resultfile"
	"github.com/huangsam/tnrpipe/internal/splitdoc"
	"github.com/huangsam/tnrpipe/schema"
	"golang.org/x/sync/errgroup"
)

// ReduceOutput is everything a reduction batch produced.
type ReduceOutput struct {
	Summary     schema.ReductionSummary
	Results     []schema.ReductionResult // ordered by interval start
	Report      *schema.RunReport
	SummaryFile string
}

// reduceTask is the isolated working state of one interval.
type reduceTask struct {
	iv       schema.Interval
	entry    schema.SummaryInterval
	result   *schema.ReductionResult
	failure  error
	resultAt string
}

// SummaryFileName returns the reduction summary file name for a run.
func SummaryFileName(run int) string {
	return fmt.Sprintf("r%d%s", run, schema.ReductionSummarySuffix)
}

// runReduce reduces every selected interval of set. Each interval runs under its
// own timeout; a failure is recorded against the interval label and the batch
// carries on. The split document is never written here.
func runReduce(ctx context.Context, cfg *contract.Config, set schema.IntervalSet, stream contract.EventStream, reducer contract.Reducer) (*ReduceOutput, error) {
	begin := time.Now()
	report := schema.NewRunReport(schema.ReduceStage)
	out := &ReduceOutput{Report: report}

	info, err := stream.RunInfo(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read run info: %w", err)
	}
	run := info.RunNumber
	if cfg.RunNumber > 0 {
		run = cfg.RunNumber
	}
	if err := os.MkdirAll(cfg.ReducedDir, 0o755); err != nil {
		return out, fmt.Errorf("failed to create reduced directory: %w", err)
	}

	rcfg := schema.ReductionConfig{
		TemplateFile: cfg.TemplateFile,
		ScanIndex:    cfg.ScanIndex,
		ThetaOffset:  cfg.ThetaOffset,
		RunNumber:    run,
		WorkDir:      cfg.ReducedDir,
	}

	tasks := make([]*reduceTask, len(set.Intervals))
	var g errgroup.Group
	g.SetLimit(max(cfg.Workers, 1))
	for i, iv := range set.Intervals {
		task := &reduceTask{iv: iv, entry: schema.SummaryInterval{
			Label:        iv.Label,
			IntervalType: iv.Kind.IntervalType(),
			Start:        iv.Start.Format(splitdoc.TimeLayout),
			End:          iv.End.Format(splitdoc.TimeLayout),
		}}
		tasks[i] = task
		if iv.IsHold() && !cfg.IncludeHolds {
			task.entry.Status = schema.OutcomeSkipped
			continue
		}
		g.Go(func() error {
			reduceInterval(ctx, cfg, stream, reducer, rcfg, task)
			return nil
		})
	}
	_ = g.Wait()

	out.Summary = schema.ReductionSummary{
		RunNumber:  run,
		BatchID:    batchIDFromContext(ctx),
		Duration:   info.DurationSeconds,
		NIntervals: len(set.Intervals),
		StartedAt:  begin.UTC(),
		FinishedAt: time.Now().UTC(),
		Options:    cfg.ReductionOptions(len(set.Intervals)),
		Failures:   map[string]string{},
	}

	slices.SortStableFunc(tasks, func(a, b *reduceTask) int { return a.iv.Start.Compare(b.iv.Start) })
	for _, task := range tasks {
		out.Summary.Intervals = append(out.Summary.Intervals, task.entry)
		switch task.entry.Status {
		case schema.OutcomeSkipped:
			report.Add(task.iv.Label, schema.OutcomeSkipped, "hold interval")
		case schema.OutcomeFailed:
			out.Summary.Failures[task.iv.Label] = task.entry.Error
			report.Add(task.iv.Label, schema.OutcomeFailed, task.entry.Error)
		default:
			out.Results = append(out.Results, *task.result)
			out.Summary.ReducedFiles = append(out.Summary.ReducedFiles, task.resultAt)
			report.Add(task.iv.Label, schema.OutcomeOK, fmt.Sprintf("%d points from %d events", task.result.NPoints(), task.entry.NEvents))
		}
	}

	out.SummaryFile = filepath.Join(cfg.ReducedDir, SummaryFileName(run))
	if err := writeJSONFile(out.SummaryFile, out.Summary); err != nil {
		return out, err
	}
	if err := writeJSONFile(filepath.Join(cfg.ReducedDir, schema.ReductionOptionsFile), out.Summary.Options); err != nil {
		return out, err
	}
	report.Output = cfg.ReducedDir
	report.Duration = time.Since(begin)

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("reduction interrupted: %w", err)
	}
	return out, nil
}

// reduceInterval selects and reduces the events of one interval, storing the
// outcome on task. A reducer that ignores its context is abandoned at the deadline.
func reduceInterval(ctx context.Context, cfg *contract.Config, stream contract.EventStream, reducer contract.Reducer, rcfg schema.ReductionConfig, task *reduceTask) {
	started := time.Now().UTC()
	task.entry.StartedAt = &started
	defer func() {
		finished := time.Now().UTC()
		task.entry.FinishedAt = &finished
		if task.failure != nil {
			task.entry.Status = schema.OutcomeFailed
			task.entry.Error = task.failure.Error()
		} else {
			task.entry.Status = schema.OutcomeOK
		}
	}()
	fail := func(err error) {
		task.failure = &schema.ReductionFailure{Label: task.iv.Label, Err: err}
	}

	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}
	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = contract.DefaultTaskTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// EIS clocks are local time without a zone
	evts, err := stream.Select(tctx, task.iv.Start.Add(cfg.TZOffset), task.iv.End.Add(cfg.TZOffset))
	if err != nil {
		fail(fmt.Errorf("event selection: %w", err))
		return
	}
	task.entry.NEvents = len(evts)

	type outcome struct {
		res schema.ReductionResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := reducer.Reduce(tctx, task.iv, evts, rcfg)
		done <- outcome{res, err}
	}()

	var res schema.ReductionResult
	select {
	case o := <-done:
		if o.err != nil {
			fail(o.err)
			return
		}
		res = o.res
	case <-tctx.Done():
		fail(tctx.Err())
		return
	}

	switch n := res.NPoints(); {
	case n < 0:
		fail(errors.New("reducer returned columns of different lengths"))
		return
	case n == 0:
		fail(errors.New("reducer returned an empty curve"))
		return
	}
	res.IntervalLabel = task.iv.Label
	res.RunNumber = rcfg.RunNumber

	path := filepath.Join(cfg.ReducedDir, resultfile.FileName(rcfg.RunNumber, task.iv.Label))
	if err := resultfile.Write(path, res); err != nil {
		fail(err)
		return
	}
	task.result = &res
	task.resultAt = path
	task.entry.OutputFile = path
}

// writeJSONFile stores v as indented JSON at path.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
