package extract

import (
	"regexp"
	"strings"
)

// columnGap matches the 2+ space runs separating aligned columns.
var columnGap = regexp.MustCompile(`[^\S\n]{2,}`)

// minTableRows is the minimum number of consecutive columnar lines that
// qualify as a tabular region.
const minTableRows = 2

// detectTables scans body text for tabular regions: runs of minTableRows or
// more consecutive lines whose cells are separated by aligned whitespace.
// Each region is rendered as a pipe-delimited text block.
func detectTables(body string) []string {
	lines := strings.Split(body, "\n")

	var tables []string
	var region []string

	flush := func() {
		if len(region) >= minTableRows {
			tables = append(tables, strings.Join(region, "\n"))
		}
		region = nil
	}

	for _, line := range lines {
		if isColumnar(line) {
			region = append(region, renderRow(line))
			continue
		}
		flush()
	}
	flush()

	return tables
}

// isColumnar reports whether a line holds at least three cells separated by
// 2+ space gaps, i.e. two or more interior column boundaries.
func isColumnar(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	return len(columnGap.FindAllStringIndex(trimmed, -1)) >= 2
}

// renderRow rewrites aligned whitespace gaps into an explicit delimiter.
func renderRow(line string) string {
	return columnGap.ReplaceAllString(strings.TrimSpace(line), " | ")
}
