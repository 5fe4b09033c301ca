// Package outwriter renders run reports, interval sets and ledger status as
// text tables, CSV or JSON.
package outwriter

import (
	"os"

	"github.com/huangsam/tnrpipe/internal/contract"
	"golang.org/x/term"
)

const (
	fallbackTermWidth = 80
	fixedColumnsWidth = 45 // stage and status columns plus borders
	minColumnWidth    = 15
	maxColumnWidth    = 70
)

// terminalWidth returns the --width override, the detected stdout width, or 80.
func terminalWidth(cfg *contract.Config) int {
	if cfg.Width > 0 {
		return cfg.Width
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return fallbackTermWidth
}

// ColumnWidth is the width shared by the two free-text table columns
// (item names and details).
func ColumnWidth(cfg *contract.Config) int {
	return min(max((terminalWidth(cfg)-fixedColumnsWidth)/2, minColumnWidth), maxColumnWidth)
}
