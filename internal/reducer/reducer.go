// Package reducer runs an external reduction command for one interval.
package reducer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/internal/events"
	"github.com/huangsam/tnrpipe/internal/resultfile"
	"github.com/huangsam/tnrpipe/schema"
)

// Placeholders expanded in every command argument.
const (
	EventsPlaceholder   = "{events}"
	TemplatePlaceholder = "{template}"
	OutputPlaceholder   = "{output}"
	LabelPlaceholder    = "{label}"
	StartPlaceholder    = "{start}"
	EndPlaceholder      = "{end}"
	RunPlaceholder      = "{run}"
	ScanPlaceholder     = "{scan_index}"
	ThetaPlaceholder    = "{theta_offset}"
)

const (
	maxStderr = 2048
	waitDelay = 2 * time.Second
)

// ExecReducer hands the events of an interval to an external command and
// reads back the result file the command writes to {output}.
type ExecReducer struct {
	command []string
}

var _ contract.Reducer = &ExecReducer{}

// NewExecReducer returns a reducer running command. The first element is the program.
func NewExecReducer(command []string) (*ExecReducer, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, errors.New("reducer command is empty")
	}
	return &ExecReducer{command: command}, nil
}

// Reduce writes events to a scratch event file, runs the command and parses its output.
func (r *ExecReducer) Reduce(ctx context.Context, iv schema.Interval, evts []schema.Event, cfg schema.ReductionConfig) (schema.ReductionResult, error) {
	if len(evts) == 0 {
		return schema.ReductionResult{}, errors.New("no events in interval")
	}

	workDir, err := os.MkdirTemp(cfg.WorkDir, "tnr-reduce-*")
	if err != nil {
		return schema.ReductionResult{}, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	eventsPath := filepath.Join(workDir, "events.parquet")
	info := schema.RunInfo{RunNumber: cfg.RunNumber, DurationSeconds: iv.DurationSeconds}
	if err := events.WriteParquet(eventsPath, evts, info); err != nil {
		return schema.ReductionResult{}, err
	}
	outputPath := filepath.Join(workDir, "result.txt")

	args := r.expand(iv, cfg, eventsPath, outputPath)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workDir
	cmd.WaitDelay = waitDelay
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return schema.ReductionResult{}, fmt.Errorf("reducer interrupted: %w", ctxErr)
		}
		return schema.ReductionResult{}, fmt.Errorf("reducer command failed: %w%s", err, tail(output.String()))
	}

	res, err := resultfile.Read(outputPath)
	if err != nil {
		return schema.ReductionResult{}, fmt.Errorf("reducer produced no usable result: %w", err)
	}
	res.IntervalLabel = iv.Label
	res.RunNumber = cfg.RunNumber
	res.ExtraMetadata = map[string]any{
		"n_events": len(evts),
		"program":  filepath.Base(args[0]),
	}
	return res, nil
}

func (r *ExecReducer) expand(iv schema.Interval, cfg schema.ReductionConfig, eventsPath, outputPath string) []string {
	rep := strings.NewReplacer(
		EventsPlaceholder, eventsPath,
		TemplatePlaceholder, cfg.TemplateFile,
		OutputPlaceholder, outputPath,
		LabelPlaceholder, iv.Label,
		StartPlaceholder, iv.Start.UTC().Format(time.RFC3339Nano),
		EndPlaceholder, iv.End.UTC().Format(time.RFC3339Nano),
		RunPlaceholder, strconv.Itoa(cfg.RunNumber),
		ScanPlaceholder, strconv.Itoa(cfg.ScanIndex),
		ThetaPlaceholder, strconv.FormatFloat(cfg.ThetaOffset, 'g', -1, 64),
	)
	args := make([]string, len(r.command))
	for i, a := range r.command {
		args[i] = rep.Replace(a)
	}
	return args
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return ": " + s
}
