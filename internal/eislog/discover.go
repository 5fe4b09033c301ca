package eislog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const maxLabelLength = 30

var (
	sequencePattern = regexp.MustCompile(`^(sequence_\d+)_.*_C\d+_(\d+)\.mpt$`)
	unsafeLabelRune = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)
)

// Discover returns the timing logs in dir matching pattern, in lexical order.
// Files whose base name contains exclude are left out; an empty exclude keeps all.
// The returned order is the discovery order used to break ties between files.
func Discover(dir, pattern, exclude string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	files := matches[:0]
	for _, m := range matches {
		if exclude != "" && strings.Contains(filepath.Base(m), exclude) {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

// Label derives a short interval label from a timing log file name.
// "sequence_1_<anything>_C02_3.mpt" becomes "sequence_1_eis_3"; any other
// name is stripped of ".mpt", made filename-safe and cut to 30 characters.
func Label(filename string) string {
	base := filepath.Base(filename)
	if m := sequencePattern.FindStringSubmatch(base); m != nil {
		return m[1] + "_eis_" + m[2]
	}
	label := strings.TrimSuffix(base, ".mpt")
	label = strings.Trim(unsafeLabelRune.ReplaceAllString(label, "_"), "_")
	if len(label) > maxLabelLength {
		label = label[:maxLabelLength]
	}
	return label
}
