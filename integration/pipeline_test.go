//go:build basic

package integration

import (
	"path/filepath"
	"testing"

	tnrparquet "github.com/huangsam/tnrpipe/internal/parquet"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipelineWithSQLiteLedger runs every stage through the CLI and checks the dataset and ledger.
func TestPipelineWithSQLiteLedger(t *testing.T) {
	requireShell(t)
	ds := writeDataset(t)
	env := map[string]string{
		"TNRPIPE_LEDGER_BACKEND":    "sqlite",
		"TNRPIPE_LEDGER_DB_CONNECT": filepath.Join(ds.Root, "runs.db"),
	}

	_, err := runCommand(t, ds.Root, env, ds.pipelineArgs()...)
	require.NoError(t, err)

	rows, err := tnrparquet.ReadFile[tnrparquet.DatasetRow](filepath.Join(ds.ReducedDir, schema.DefaultPackageFile))
	require.NoError(t, err)
	require.Len(t, rows, 2, "one row per measurement curve")
	for _, r := range rows {
		assert.Equal(t, int64(218386), r.RunNumber)
		assert.Equal(t, int64(2), r.NPoints)
	}

	out, err := runCommand(t, ds.Root, env, "runs", "status", "--color", "no")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite")

	_, err = runCommand(t, ds.Root, env, "runs", "export", "--output-file", filepath.Join(ds.Root, "ledger.parquet"))
	require.NoError(t, err)
	runs, err := tnrparquet.ReadFile[tnrparquet.Run](filepath.Join(ds.Root, "ledger.parquet.runs.parquet"))
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	_, err = runCommand(t, ds.Root, env, "runs", "clear")
	require.NoError(t, err)
	_, err = runCommand(t, ds.Root, env, "runs", "export", "--output-file", filepath.Join(ds.Root, "empty.parquet"))
	assert.Error(t, err, "no runs left to export")
}

// TestExtractThenPackageValidateOnly runs stages separately against one split document.
func TestExtractThenPackageValidateOnly(t *testing.T) {
	requireShell(t)
	ds := writeDataset(t)
	split := filepath.Join(ds.Root, "split.json")

	_, err := runCommand(t, ds.Root, nil, "extract", "--data-dir", ds.DataDir, "--pattern", "*.mpt", "--split-file", split, "--resolution", "per-frequency")
	require.NoError(t, err)
	assert.FileExists(t, split)

	_, err = runCommand(t, ds.Root, nil, "reduce",
		"--split-file", split, "--event-file", ds.EventFile, "--template-file", ds.Template,
		"--reduced-dir", ds.ReducedDir, "--reducer", ds.Reducer, "--workers", "2")
	require.NoError(t, err)

	out, err := runCommand(t, ds.Root, nil, "package", "--split-file", split, "--reduced-dir", ds.ReducedDir, "--template-file", ds.Template, "--validate-only", "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"stage"`)
	assert.NoFileExists(t, filepath.Join(ds.ReducedDir, schema.DefaultPackageFile))
}

// TestMigrateFreshDatabase applies and rolls back the ledger schema.
func TestMigrateFreshDatabase(t *testing.T) {
	root := t.TempDir()
	env := map[string]string{
		"TNRPIPE_LEDGER_BACKEND":    "sqlite",
		"TNRPIPE_LEDGER_DB_CONNECT": filepath.Join(root, "fresh.db"),
	}

	out, err := runCommand(t, root, env, "runs", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully migrated from version 0")

	out, err = runCommand(t, root, env, "runs", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "No migration needed")

	out, err = runCommand(t, root, env, "runs", "migrate", "--target-version", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "rolled back")
}

// TestInvalidConfiguration reports validation failures with a non-zero exit.
func TestInvalidConfiguration(t *testing.T) {
	root := t.TempDir()
	out, err := runCommand(t, root, nil, "extract", "--data-dir", root, "--resolution", "hourly")
	require.Error(t, err)
	assert.Contains(t, out, "resolution")

	_, err = runCommand(t, root, nil, "version")
	require.NoError(t, err)
}
