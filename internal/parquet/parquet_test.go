package parquet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/tnrpipe/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDatasetRowStructTags(t *testing.T) {
	// Verify struct tags are properly defined for parquet schema inference
	s := parquet.SchemaOf(new(DatasetRow))
	require.NotNil(t, s)

	expectedColumns := []string{
		"run_number", "filename", "filepath", "n_points",
		"Q_min", "Q_max", "R_min", "R_max",
		"interval_label", "interval_type", "interval_start", "interval_end",
		"duration_seconds", "hold_index",
	}
	for _, colName := range expectedColumns {
		col, ok := s.Lookup(colName)
		require.True(t, ok, "Column %s should exist in schema", colName)
		require.NotNil(t, col, "Column %s should not be nil", colName)
	}

	for _, name := range []string{"Q", "R", "dR", "dQ"} {
		field := fieldByName(s, name)
		require.NotNil(t, field, "list column %s should exist", name)
		assert.False(t, field.Leaf(), "%s should be a nested LIST column", name)
	}
}

func fieldByName(s *parquet.Schema, name string) parquet.Field {
	for _, f := range s.Fields() {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func TestExperimentMetadataStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(ExperimentMetadata))
	for _, colName := range []string{
		"run_number", "total_duration", "n_intervals", "n_reduced_files",
		"source_directory", "eis_pattern", "resolution", "reduction_template_xml",
		"packaged_timestamp", "packager_version", "intervals_json",
		"split_metadata_json", "reduction_metadata_json",
	} {
		_, ok := s.Lookup(colName)
		assert.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func TestWriteReadDataset_VariableLengths(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "nested", "tnr_data.parquet")

	var rows []DatasetRow
	for i, n := range []int{50, 120, 3} {
		q := make([]float64, n)
		for j := range q {
			q[j] = 0.01 + float64(j)*0.001
		}
		row := DatasetRow{
			RunNumber: 218389, Filename: "f.txt", NPoints: int64(n),
			Q: q, R: q, DR: q, DQ: q, QMin: q[0], QMax: q[n-1],
		}
		if i != 1 {
			row.IntervalLabel = strPtr("label")
		}
		rows = append(rows, row)
	}
	require.NoError(t, WriteFile(outputPath, rows))

	got, err := ReadFile[DatasetRow](outputPath)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, n := range []int{50, 120, 3} {
		assert.Equal(t, int64(n), got[i].NPoints)
		assert.Len(t, got[i].Q, n)
		assert.Len(t, got[i].DQ, n)
		assert.InDelta(t, rows[i].QMax, got[i].QMax, 1e-12)
	}
	assert.Nil(t, got[1].IntervalLabel)
	require.NotNil(t, got[0].IntervalLabel)
	assert.Equal(t, "label", *got[0].IntervalLabel)
	assert.Nil(t, got[0].HoldIndex)
}

func TestEncode_Deterministic(t *testing.T) {
	rows := []DatasetRow{{RunNumber: 1, Filename: "a", Q: []float64{1, 2}, R: []float64{3, 4}, DR: []float64{0, 0}, DQ: []float64{0, 0}}}
	var first, second bytes.Buffer
	require.NoError(t, Encode(&first, rows))
	require.NoError(t, Encode(&second, rows))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestWriteFile_Empty(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteFile(outputPath, []Run{}))

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	got, err := ReadFile[Run](outputPath)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile[Run](filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}

func TestMetadataPath(t *testing.T) {
	assert.Equal(t, "/out/tnr_data_metadata.parquet", MetadataPath("/out/tnr_data.parquet"))
	assert.Equal(t, "/out/dataset_metadata.parquet", MetadataPath("/out/dataset"))
}

func TestConvertRunRecords(t *testing.T) {
	end := time.Date(2025, 4, 20, 12, 0, 0, 0, time.UTC)
	ms := int32(1500)
	records := []schema.RunRecord{
		{RunID: 1, BatchID: "b", Stage: "reduce", StartTime: end.Add(-time.Second), EndTime: &end, RunDurationMs: &ms, Processed: 3, Failed: 1, ConfigParams: strPtr(`{"workers":2}`)},
		{RunID: 2, BatchID: "b", Stage: "package", StartTime: end},
	}
	runs := ConvertRunRecords(records)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(1), runs[0].RunID)
	assert.Equal(t, int32(3), runs[0].Processed)
	assert.Equal(t, &ms, runs[0].RunDurationMs)
	assert.Nil(t, runs[1].EndTime)

	path := filepath.Join(t.TempDir(), "runs.parquet")
	require.NoError(t, WriteFile(path, runs))
	back, err := ReadFile[Run](path)
	require.NoError(t, err)
	require.Len(t, back, 2)
	require.NotNil(t, back[0].EndTime)
	assert.WithinDuration(t, end, *back[0].EndTime, time.Microsecond)
	assert.Nil(t, back[1].ConfigParams)
}

func TestConvertOutcomeRecords(t *testing.T) {
	out := ConvertOutcomeRecords([]schema.OutcomeRecord{
		{RunID: 4, IntervalLabel: "hold_0", Status: "skipped"},
		{RunID: 4, IntervalLabel: "a", Status: "failed", Detail: strPtr("timeout")},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "hold_0", out[0].IntervalLabel)
	assert.Nil(t, out[0].Detail)
	assert.Equal(t, "timeout", *out[1].Detail)
}
