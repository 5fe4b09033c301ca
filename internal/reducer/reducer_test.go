package reducer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/tnrpipe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRows = `printf '# Q R dR dQ\n0.01 1 0.1 0.001\n0.02 0.5 0.05 0.002\n' > "$0"`

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func testInterval() schema.Interval {
	start := time.Date(2025, 4, 20, 15, 55, 16, 0, time.UTC)
	return schema.Interval{Label: "seq_eis_1", Kind: schema.MeasurementKind, Start: start, End: start.Add(time.Minute), DurationSeconds: 60}
}

func testEvents() []schema.Event {
	iv := testInterval()
	return []schema.Event{{PulseTime: iv.Start, PixelID: 1}, {PulseTime: iv.Start.Add(time.Second), PixelID: 2}}
}

func TestNewExecReducer_Empty(t *testing.T) {
	_, err := NewExecReducer(nil)
	assert.Error(t, err)
	_, err = NewExecReducer([]string{" "})
	assert.Error(t, err)
}

func TestReduce_Success(t *testing.T) {
	requireShell(t)
	r, err := NewExecReducer([]string{"sh", "-c", `test -s "$1" && ` + twoRows, "{output}", "{events}"})
	require.NoError(t, err)

	cfg := schema.ReductionConfig{RunNumber: 218389, WorkDir: t.TempDir()}
	res, err := r.Reduce(context.Background(), testInterval(), testEvents(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "seq_eis_1", res.IntervalLabel)
	assert.Equal(t, 218389, res.RunNumber)
	assert.Equal(t, 2, res.NPoints())
	assert.Equal(t, []float64{0.01, 0.02}, res.Q)
	assert.Equal(t, 2, res.ExtraMetadata["n_events"])

	// scratch space is cleaned up
	entries, err := os.ReadDir(cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReduce_Placeholders(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	capture := filepath.Join(dir, "args.txt")
	script := `echo "$1|$2|$3|$4|$5|$6" > "$7"; ` + twoRows
	r, err := NewExecReducer([]string{"sh", "-c", script, "{output}", "{label}", "{run}", "{template}", "{start}", "{scan_index}", "{theta_offset}", capture})
	require.NoError(t, err)

	cfg := schema.ReductionConfig{RunNumber: 7, TemplateFile: "/t/template.xml", ScanIndex: 3, ThetaOffset: 0.01, WorkDir: dir}
	_, err = r.Reduce(context.Background(), testInterval(), testEvents(), cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(capture)
	require.NoError(t, err)
	assert.Equal(t, "seq_eis_1|7|/t/template.xml|2025-04-20T15:55:16Z|3|0.01\n", string(data))
}

func TestReduce_Failures(t *testing.T) {
	requireShell(t)
	tests := []struct {
		name    string
		command []string
		events  []schema.Event
		wantErr string
	}{
		{"no events", []string{"true"}, nil, "no events"},
		{"non-zero exit", []string{"sh", "-c", "echo boom >&2; exit 3"}, testEvents(), "boom"},
		{"no output", []string{"true"}, testEvents(), "no usable result"},
		{"bad output", []string{"sh", "-c", `echo "1 2 3" > "$0"`, "{output}"}, testEvents(), "schema mismatch"},
		{"missing program", []string{"/nonexistent/reducer"}, testEvents(), "reducer command failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewExecReducer(tt.command)
			require.NoError(t, err)
			_, err = r.Reduce(context.Background(), testInterval(), tt.events, schema.ReductionConfig{WorkDir: t.TempDir()})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestReduce_Timeout(t *testing.T) {
	requireShell(t)
	r, err := NewExecReducer([]string{"sh", "-c", "sleep 10"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	begin := time.Now()
	_, err = r.Reduce(ctx, testInterval(), testEvents(), schema.ReductionConfig{WorkDir: t.TempDir()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(begin), 8*time.Second)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "", tail("  \n"))
	assert.Equal(t, ": oops", tail("oops\n"))
	long := make([]byte, maxStderr+10)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, tail(string(long)), len(": ...")+maxStderr)
}
