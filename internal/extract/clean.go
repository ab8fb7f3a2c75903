package extract

import (
	"regexp"
	"strings"
)

var (
	lineEndings   = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	horizontalWS  = regexp.MustCompile(`[ \t]+`)
	excessNewline = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes extracted text: line endings become \n, runs of
// horizontal whitespace collapse to one space, every line is trimmed,
// runs of blank lines collapse to a single blank line, and the overall
// text is trimmed. Clean is idempotent.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	text = lineEndings.Replace(text)
	text = horizontalWS.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	// Line trimming may turn whitespace-only lines into empty ones, so
	// blank-line collapsing must run after it to stay idempotent.
	text = excessNewline.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
