package retrieval

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	cidRe       = regexp.MustCompile(`\(cid:\d+\)`)
	pageOfRe    = regexp.MustCompile(`(?i)\bpage\s+\d+\s+of\s+\d+\b`)
	spaceRunRe  = regexp.MustCompile(` {2,}`)
	blankRunRe  = regexp.MustCompile(`\n{2,}`)
	lineEdgesRe = regexp.MustCompile(` *\n *`)
)

// Clean normalizes extracted PDF text: it drops control characters and glyph artefacts such as
// "(cid:12)" and "Page 3 of 10", folds whitespace runs to a single space and blank line runs to a
// single newline.
func Clean(text string) string {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n", "\t", " ").Replace(text)
	text = cidRe.ReplaceAllString(text, "")
	text = pageOfRe.ReplaceAllString(text, "")

	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == ' ':
			return r
		case unicode.IsSpace(r):
			return ' '
		case r == unicode.ReplacementChar || !unicode.IsPrint(r):
			return -1
		default:
			return r
		}
	}, text)

	text = spaceRunRe.ReplaceAllString(text, " ")
	text = lineEdgesRe.ReplaceAllString(text, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
