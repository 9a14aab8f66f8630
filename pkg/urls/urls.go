// Package urls provides utility functions for working with URLs.
package urls

import (
	"strings"
)

// SplitLines turns raw multi-line input into candidate URLs: every line is
// trimmed, blank lines are dropped, and repeats of an identical string keep
// only their first position. No syntax validation is done; the downloader
// decides what it accepts.
func SplitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var (
		out  []string
		seen = make(map[string]struct{})
	)

	for line := range strings.SplitSeq(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if _, dup := seen[line]; dup {
			continue
		}

		seen[line] = struct{}{}
		out = append(out, line)
	}

	return out
}
