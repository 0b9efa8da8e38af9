package internal

import (
	"regexp"
	"strings"
)

var separatorRowRe = regexp.MustCompile(`^\s*\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?\s*$`)

// NormalizeMarkdown repairs Markdown tables whose header separator row was
// lost or mangled while the text streamed in. A header row (a line with a
// pipe, preceded by a non-table line and followed by another table line)
// gets a blank line before it and a `| --- |` separator with matching column
// count after it. Fenced code blocks are left untouched.
//
// It runs once when a turn is finalized and is idempotent.
func NormalizeMarkdown(md string) string {
	if !strings.Contains(md, "|") {
		return md
	}

	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines)+4)
	inFence := false
	prevTable := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			out = append(out, line)
			prevTable = false
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}

		row := isTableRow(line)
		if row && !prevTable && !isSeparatorRow(line) && i+1 < len(lines) && isTableRow(lines[i+1]) {
			if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
				out = append(out, "")
			}
			out = append(out, line)

			cols := columnCount(line)
			next := lines[i+1]
			switch {
			case !isSeparatorRow(next):
				out = append(out, separatorRow(cols))
			case columnCount(next) != cols:
				// mangled separator: replace it
				out = append(out, separatorRow(cols))
				i++
			}
			prevTable = true
			continue
		}

		out = append(out, line)
		prevTable = row
	}

	return strings.Join(out, "\n")
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && strings.Contains(trimmed, "|")
}

func isSeparatorRow(line string) bool {
	return strings.Contains(line, "-") && separatorRowRe.MatchString(line)
}

func columnCount(line string) int {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	return strings.Count(trimmed, "|") + 1
}

func separatorRow(cols int) string {
	return "|" + strings.Repeat(" --- |", cols)
}
