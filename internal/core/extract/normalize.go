package extract

import (
	"strings"
	"unicode/utf8"
)

// NormalizeText produces canonical UTF-8 text: CRLF collapsed to LF, runs of
// spaces and tabs collapsed to one space, per-line whitespace trimmed, and
// runs of blank lines reduced to a single blank line. Line boundaries are
// preserved because section detection depends on them.
func NormalizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}

	return strings.Trim(strings.Join(out, "\n"), "\n")
}

// CountWords counts whitespace-separated tokens in normalized text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountChars counts runes, not bytes, in normalized text.
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}
