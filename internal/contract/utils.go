package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/tnrpipe/schema"
)

// Color variables for console output.
var (
	FailedColor  = color.New(color.FgRed, color.Bold) // FailedColor marks items excluded from output.
	WarningColor = color.New(color.FgYellow)          // WarningColor marks items kept with caveats.
	SkippedColor = color.New(color.FgCyan)            // SkippedColor marks items skipped on purpose.
	OKColor      = color.New(color.FgGreen)           // OKColor marks processed items.
)

// GetColorStatus returns a colored status label for console output (table).
func GetColorStatus(status schema.OutcomeStatus) string {
	text := string(status)
	switch status {
	case schema.OutcomeFailed:
		return FailedColor.Sprint(text)
	case schema.OutcomeWarning:
		return WarningColor.Sprint(text)
	case schema.OutcomeSkipped:
		return SkippedColor.Sprint(text)
	default:
		return OKColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path means os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// LogInfo logs a status line to stderr so stdout stays machine-readable.
func LogInfo(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// GetLedgerDBFilePath returns the path to the SQLite DB file for run tracking.
func GetLedgerDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".tnrpipe_runs.db"
	}
	return filepath.Join(homeDir, ".tnrpipe_runs.db")
}

// TruncatePath truncates a file path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 so the "..." prefix leaves room for content.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}

// ProcessProfilingConfig fills the profiling config from the --profile prefix.
func ProcessProfilingConfig(profile *ProfileConfig, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		profile.Enabled = false
		return nil
	}
	dir := filepath.Dir(prefix)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("profile directory %q does not exist", dir)
	}
	profile.Enabled = true
	profile.Prefix = prefix
	return nil
}
