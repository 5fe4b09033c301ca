package core

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/tnrpipe/internal/contract"
	"github.com/huangsam/tnrpipe/schema"
	"github.com/stretchr/testify/require"
)

// writeTimingLog writes an EC-Lab style timing log whose rows end at the given elapsed seconds.
func writeTimingLog(t *testing.T, dir, name, acquisition string, elapsed ...float64) string {
	t.Helper()
	lines := []string{
		"EC-Lab ASCII FILE",
		"Nb header lines : 4",
		"Acquisition started on : " + acquisition,
		"freq/Hz\tRe(Z)/Ohm\t-Im(Z)/Ohm\ttime/s",
	}
	freq := 100000.0
	for _, e := range elapsed {
		lines = append(lines, strings.Join([]string{
			formatFloat(freq), "1.5", "2.5", formatFloat(e),
		}, "\t"))
		freq /= 10
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\r\n")+"\r\n"), 0o644))
	return path
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func testConfig(t *testing.T) *contract.Config {
	t.Helper()
	root := t.TempDir()
	return &contract.Config{
		DataDir:      filepath.Join(root, "eis"),
		Pattern:      "*.mpt",
		Resolution:   schema.PerFile,
		ReducedDir:   filepath.Join(root, "reduced"),
		TemplateFile: writeFile(t, filepath.Join(root, "template.xml"), "<Reduction/>"),
		Workers:      2,
		TaskTimeout:  time.Minute,
		Output:       schema.JSONOut,
		Precision:    contract.DefaultPrecision,
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02T15:04:05.999999999", s)
	require.NoError(t, err)
	return ts
}
