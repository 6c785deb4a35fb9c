// Package extract holds the heuristic post-processing shared by all
// decoders and fallback paths: word counting, text capping, and best-effort
// section/table detection over plain text. The heuristics are pattern
// matches with no accuracy guarantee; callers must treat the recovered
// structure as advisory.
package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/feichai0017/attachment-extractor/internal/models"
)

// MaxTextLen is the cap applied to extracted text, bounding downstream
// memory regardless of input size.
const MaxTextLen = 500_000

// CountWords returns the number of whitespace-delimited non-empty tokens.
// Every decoder and fallback path computes WordCount through this function
// so the wordCount invariant holds uniformly.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Truncate caps text at MaxTextLen runes, cutting at a rune boundary.
func Truncate(text string) string {
	return TruncateAt(text, MaxTextLen)
}

// TruncateAt caps text at limit runes.
func TruncateAt(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// ClampLevel forces a heading level into [1,6].
func ClampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

// DetectTables finds table-like regions in plain text: runs of at least two
// consecutive lines each containing two or more cell delimiters (pipe or
// tab). Cells are split on the dominant delimiter and trimmed.
func DetectTables(text string) []models.Table {
	lines := strings.Split(text, "\n")
	var tables []models.Table
	var run []string

	flush := func() {
		if len(run) >= 2 {
			tables = append(tables, buildTable(run))
		}
		run = nil
	}

	for _, line := range lines {
		if strings.Count(line, "|") >= 2 || strings.Count(line, "\t") >= 2 {
			run = append(run, line)
			continue
		}
		flush()
	}
	flush()

	return tables
}

func buildTable(lines []string) models.Table {
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		delim := "|"
		if strings.Count(line, "\t") > strings.Count(line, "|") {
			delim = "\t"
		}
		parts := strings.Split(line, delim)
		cells := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cells = append(cells, p)
			}
		}
		// Markdown-style separator rows carry no content.
		if isSeparatorRow(cells) {
			continue
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return models.Table{Rows: rows}
}

func isSeparatorRow(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

// DetectSections recovers a flat section outline from plain text using the
// short-line heuristic: a line shorter than 80 runes that is either fully
// upper-case, numbered ("1.", "2.1"), or ends with a colon starts a new
// section. Text before the first heading becomes an untitled level-1
// section.
func DetectSections(text string) []models.Section {
	lines := strings.Split(text, "\n")
	var sections []models.Section
	var current *models.Section

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if looksLikeHeading(trimmed) {
			if current != nil {
				current.Content = strings.TrimSpace(current.Content)
				sections = append(sections, *current)
			}
			current = &models.Section{Title: strings.TrimSuffix(trimmed, ":"), Level: headingLevel(trimmed)}
			continue
		}
		if trimmed == "" {
			if current != nil {
				current.Content += "\n"
			}
			continue
		}
		if current == nil {
			current = &models.Section{Title: "", Level: 1}
		}
		current.Content += trimmed + "\n"
	}
	if current != nil {
		current.Content = strings.TrimSpace(current.Content)
		sections = append(sections, *current)
	}

	return sections
}

func looksLikeHeading(line string) bool {
	if line == "" || utf8.RuneCountInString(line) >= 80 {
		return false
	}
	if strings.HasSuffix(line, ":") && utf8.RuneCountInString(line) <= 60 {
		return true
	}
	if numberedPrefix(line) {
		return true
	}
	return isUpperLine(line)
}

// numberedPrefix matches "1. Title" or "2.1 Title" style headings.
func numberedPrefix(line string) bool {
	i := 0
	digits := 0
	for i < len(line) {
		c := line[i]
		if c >= '0' && c <= '9' {
			digits++
			i++
			continue
		}
		if c == '.' && digits > 0 {
			i++
			continue
		}
		break
	}
	return digits > 0 && i < len(line) && line[i] == ' '
}

func isUpperLine(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters >= 3
}

// headingLevel estimates a level from a numbered prefix depth; everything
// else is level 1.
func headingLevel(line string) int {
	depth := 1
	seenDigit := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c >= '0' && c <= '9' {
			seenDigit = true
			continue
		}
		if c == '.' && seenDigit && i+1 < len(line) && line[i+1] >= '0' && line[i+1] <= '9' {
			depth++
			continue
		}
		break
	}
	return ClampLevel(depth)
}
