package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/internal/ledger"
	mcp_internal "github.com/huangsam/tnrpipe/internal/mcp"
	"github.com/huangsam/tnrpipe/internal/resultfile"
	"github.com/huangsam/tnrpipe/internal/splitdoc"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTimingLog(t *testing.T, dir, name, acquisition string, rows ...string) {
	t.Helper()
	lines := append([]string{
		"EC-Lab ASCII FILE",
		"Nb header lines : 4",
		"Acquisition started on : " + acquisition,
		"freq/Hz\tRe(Z)/Ohm\ttime/s",
	}, rows...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func callTool(t *testing.T, cfg *contract.Config, store contract.RunStore, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	s := mcp_internal.NewMCPServer(cfg, store, "test")
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	return res
}

func resultText(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func baseConfig() *contract.Config {
	return &contract.Config{Pattern: "*.mpt", Resolution: schema.PerFile, Workers: 1}
}

func TestMCPServer_Tools(t *testing.T) {
	s := mcp_internal.NewMCPServer(baseConfig(), nil, "test")
	for _, name := range []string{"extract_intervals", "describe_split", "validate_package", "package_dataset", "ledger_status"} {
		assert.NotNil(t, s.GetTool(name), name)
	}
}

func TestExtractIntervals(t *testing.T) {
	dir := t.TempDir()
	writeTimingLog(t, dir, "sequence_2_x_C02_1.mpt", "04/20/2025 10:00:00.000", "1000\t1\t0.5", "100\t1\t120")
	writeTimingLog(t, dir, "sequence_2_x_C02_2.mpt", "04/20/2025 10:05:00.000", "1000\t1\t0.5", "100\t1\t60")
	split := filepath.Join(t.TempDir(), "split.json")

	res := callTool(t, baseConfig(), nil, "extract_intervals", map[string]any{
		"data_dir":      dir,
		"gap_tolerance": 600.0,
		"split_file":    split,
	})
	require.False(t, res.IsError, resultText(res))

	var payload struct {
		Split  splitdoc.Document `json:"split"`
		Report schema.RunReport  `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &payload))
	assert.Equal(t, 2, payload.Split.NIntervals, "a gap under the tolerance makes no hold")
	assert.Equal(t, "sequence_2_eis_1", payload.Split.Intervals[0].Label)
	assert.Equal(t, 2, payload.Report.Processed)
	assert.FileExists(t, split)
}

func TestExtractIntervals_Errors(t *testing.T) {
	res := callTool(t, baseConfig(), nil, "extract_intervals", map[string]any{"data_dir": t.TempDir(), "resolution": "hourly"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "invalid resolution")

	res = callTool(t, baseConfig(), nil, "extract_intervals", map[string]any{"data_dir": t.TempDir()})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "extraction failed")
}

func TestExtractIntervals_InvalidGapTolerance(t *testing.T) {
	for _, g := range []float64{-5, 1e300} {
		res := callTool(t, baseConfig(), nil, "extract_intervals", map[string]any{"data_dir": t.TempDir(), "gap_tolerance": g})
		assert.True(t, res.IsError, "gap_tolerance %v", g)
		assert.Contains(t, resultText(res), "invalid gap_tolerance")
	}
}

func TestDescribeSplit(t *testing.T) {
	start := time.Date(2025, 4, 20, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "split.json")
	require.NoError(t, splitdoc.Write(path, schema.IntervalSet{
		Resolution: schema.PerFile,
		Intervals: []schema.Interval{
			{Label: "a", Kind: schema.MeasurementKind, Start: start, End: start.Add(time.Minute), DurationSeconds: 60},
			{Label: "hold_0", Kind: schema.HoldKind, Start: start.Add(time.Minute), End: start.Add(3 * time.Minute), DurationSeconds: 120},
		},
	}))

	res := callTool(t, baseConfig(), nil, "describe_split", map[string]any{"split_file": path})
	require.False(t, res.IsError, resultText(res))
	var desc map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &desc))
	assert.EqualValues(t, 2, desc["n_intervals"])
	assert.EqualValues(t, 1, desc["n_holds"])
	assert.EqualValues(t, 180, desc["total_seconds"])
	assert.Equal(t, "2025-04-20T10:00:00", desc["start"])

	res = callTool(t, baseConfig(), nil, "describe_split", map[string]any{"split_file": filepath.Join(t.TempDir(), "missing.json")})
	assert.True(t, res.IsError)

	res = callTool(t, baseConfig(), nil, "describe_split", map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "split_file is required")
}

func packageInputs(t *testing.T) map[string]any {
	t.Helper()
	dir := t.TempDir()
	start := time.Date(2025, 4, 20, 10, 0, 0, 0, time.UTC)
	split := filepath.Join(dir, "split.json")
	require.NoError(t, splitdoc.Write(split, schema.IntervalSet{
		Resolution: schema.PerFile,
		Intervals:  []schema.Interval{{Label: "a", Kind: schema.MeasurementKind, Start: start, End: start.Add(time.Minute), DurationSeconds: 60}},
	}))
	reduced := filepath.Join(dir, "reduced")
	require.NoError(t, os.MkdirAll(reduced, 0o755))
	require.NoError(t, resultfile.Write(filepath.Join(reduced, "r7_a.txt"), schema.ReductionResult{
		Q: []float64{0.01, 0.02}, R: []float64{1, 0.5}, DR: []float64{0.1, 0.05}, DQ: []float64{0.001, 0.002},
	}))
	template := filepath.Join(dir, "template.xml")
	require.NoError(t, os.WriteFile(template, []byte("<Reduction/>"), 0o644))
	return map[string]any{"split_file": split, "reduced_dir": reduced, "template_file": template}
}

func TestValidatePackage(t *testing.T) {
	args := packageInputs(t)
	res := callTool(t, baseConfig(), nil, "validate_package", args)
	require.False(t, res.IsError, resultText(res))

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &resp))
	assert.EqualValues(t, 1, resp["rows"])
	assert.NotContains(t, resp, "main_file")
	assert.NoFileExists(t, filepath.Join(args["reduced_dir"].(string), schema.DefaultPackageFile))
}

func TestPackageDataset(t *testing.T) {
	args := packageInputs(t)
	store, err := ledger.NewStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	res := callTool(t, baseConfig(), store, "package_dataset", args)
	require.False(t, res.IsError, resultText(res))
	assert.FileExists(t, filepath.Join(args["reduced_dir"].(string), schema.DefaultPackageFile))

	res = callTool(t, baseConfig(), store, "ledger_status", nil)
	require.False(t, res.IsError, resultText(res))
	var status schema.LedgerStatus
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &status))
	assert.Equal(t, 1, status.TotalRuns)
}

func TestPackageDataset_MissingInputs(t *testing.T) {
	args := packageInputs(t)
	args["template_file"] = filepath.Join(t.TempDir(), "missing.xml")

	res := callTool(t, baseConfig(), nil, "package_dataset", args)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "missing input")
}

func TestLedgerStatus_Disabled(t *testing.T) {
	res := callTool(t, baseConfig(), nil, "ledger_status", nil)
	assert.True(t, res.IsError)
}
