package eislog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/tnrpipe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const columnLine = "freq/Hz\tRe(Z)/Ohm\t-Im(Z)/Ohm\t|Z|/Ohm\tPhase(Z)/deg\ttime/s"

// writeLog writes an EC-Lab style log with the given data rows and returns its path.
func writeLog(t *testing.T, dir, name, acquisition string, rows ...string) string {
	t.Helper()
	lines := []string{
		"EC-Lab ASCII FILE",
		"Nb header lines : 4",
		"Acquisition started on : " + acquisition,
		columnLine,
	}
	lines = append(lines, rows...)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\r\n")+"\r\n"), 0o644))
	return path
}

func collect(t *testing.T, l *Log) ([]schema.TimedMeasurement, []error) {
	t.Helper()
	var ms []schema.TimedMeasurement
	var errs []error
	for m, err := range l.Measurements() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ms = append(ms, m)
	}
	return ms, errs
}

func TestOpen_ParsesHeader(t *testing.T) {
	path := writeLog(t, t.TempDir(), "a.mpt", "04/20/2025 10:55:16.521",
		"100000\t1\t2\t3\t4\t0.5",
		"1000\t1\t2\t3\t4\t589.84",
	)

	l, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 20, 10, 55, 16, 521_000_000, time.UTC), l.AcquisitionStart)
	assert.Equal(t, 4, l.HeaderLines)
	assert.Equal(t, 5, l.TimeColumn)
	assert.Len(t, l.Columns, 6)
	assert.Equal(t, "a.mpt", l.Filename())
}

func TestMeasurements_IsRestartable(t *testing.T) {
	path := writeLog(t, t.TempDir(), "a.mpt", "04/20/2025 10:55:16.521",
		"100000\t1\t2\t3\t4\t0.5",
		"10000\t1\t2\t3\t4\t12.25",
		"1000\t1\t2\t3\t4\t589.84",
	)
	l, err := Open(path)
	require.NoError(t, err)

	first, errs := collect(t, l)
	require.Empty(t, errs)
	second, _ := collect(t, l)
	assert.Equal(t, first, second)

	require.Len(t, first, 3)
	assert.Equal(t, 100000.0, first[0].FrequencyHz)
	assert.Equal(t, 589.84, first[2].ElapsedSeconds)
	assert.Equal(t, 2, first[2].Row)
	assert.Len(t, first[0].Values, 6)
}

func TestMeasurements_SkipsBadRows(t *testing.T) {
	path := writeLog(t, t.TempDir(), "a.mpt", "04/20/2025 10:55:16.521",
		"100000\t1\t2\t3\t4\t10",
		"50000\t1\t2\t3\t4\t5", // goes backwards
		"bad\trow",
		"",
		"1000\t1\t2\t3\t4\t20",
	)
	l, err := Open(path)
	require.NoError(t, err)

	ms, errs := collect(t, l)
	require.Len(t, ms, 2)
	assert.Equal(t, 20.0, ms[1].ElapsedSeconds)
	require.Len(t, errs, 2)

	var nm *schema.NonMonotonicTimeError
	require.True(t, errors.As(errs[0], &nm))
	assert.Equal(t, 1, nm.Row)
	assert.Equal(t, 10.0, nm.Previous)

	var re *RowError
	require.True(t, errors.As(errs[1], &re))
	assert.Equal(t, 2, re.Row)
}

func TestGroup(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "sequence_2_CuPt_PEIS_C02_4.mpt", "04/20/2025 11:30:00.000",
		"100000\t1\t2\t3\t4\t1",
		"10\t1\t2\t3\t4\t0.5",
		"1\t1\t2\t3\t4\t300",
	)
	l, err := Open(path)
	require.NoError(t, err)

	g, warnings, err := l.Group()
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.Equal(t, "sequence_2_eis_4", g.Label)
	assert.Len(t, g.Measurements, 2)
	assert.Equal(t, 300.0, g.LastElapsed())
}

func TestOpen_MalformedHeader(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.mpt")
	require.NoError(t, os.WriteFile(missing, []byte("Nb header lines : 2\nfreq/Hz\ttime/s\n1\t2\n"), 0o644))
	_, err := Open(missing)
	var mh *schema.MalformedHeaderError
	require.True(t, errors.As(err, &mh))
	assert.Equal(t, "missing.mpt", mh.File)
	assert.Contains(t, mh.Reason, "missing")

	garbled := writeLog(t, dir, "garbled.mpt", "sometime yesterday")
	_, err = Open(garbled)
	require.True(t, errors.As(err, &mh))
	assert.Contains(t, mh.Reason, "unparsable")

	_, err = Open(filepath.Join(dir, "nope.mpt"))
	assert.Error(t, err)
}

func TestOpen_Latin1AndImplicitHeader(t *testing.T) {
	// No "Nb header lines" and a Latin-1 micro sign in the column header.
	content := []byte("Acquisition started on : 01/02/2025 08:00:00.250\n" +
		"freq/Hz\tI/\xb5A\ttime/s\n" +
		"10\t0.1\t1.5\n" +
		"1\t0.2\t3.0\n")
	path := filepath.Join(t.TempDir(), "plain.mpt")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	l, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, l.HeaderLines)
	assert.Equal(t, []string{"freq/Hz", "I/µA", "time/s"}, l.Columns)
	assert.Equal(t, 2, l.TimeColumn)

	ms, errs := collect(t, l)
	require.Empty(t, errs)
	require.Len(t, ms, 2)
	assert.Equal(t, 3.0, ms[1].ElapsedSeconds)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_C02_2.mpt", "a_C02_1.mpt", "a_C02_1_fit.mpt", "notes.txt", "c_C01_1.mpt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := Discover(dir, schema.DefaultPattern, schema.DefaultExclude)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a_C02_1.mpt", filepath.Base(files[0]))
	assert.Equal(t, "b_C02_2.mpt", filepath.Base(files[1]))

	all, err := Discover(dir, "*.mpt", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = Discover(filepath.Join(dir, "absent"), "*.mpt", "")
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sequence_1_CuPt_UHP1MLiBF4-d8-THF_1per-EtOH_expt11_CAs,PEIS,OCV_02_PEIS_C02_1.mpt", "sequence_1_eis_1"},
		{"sequence_5_CuPt_expt_C02_5.mpt", "sequence_5_eis_5"},
		{"/data/run/sequence_12_x_C02_3.mpt", "sequence_12_eis_3"},
		{"short.mpt", "short"},
		{"with spaces, commas.mpt", "with_spaces_commas"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.in), tt.in)
	}

	long := Label("some_other_filename_structure_that_is_long.mpt")
	assert.LessOrEqual(t, len(long), 30)
	assert.NotContains(t, long, ".mpt")
}
