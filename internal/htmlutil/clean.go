package htmlutil

import (
	"regexp"
	"strings"

	"github.com/k3a/html2text"
)

var anchorTag = regexp.MustCompile(`(?i)</?a\b[^>]*>`)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and preserves readable text.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// CellText converts the inner HTML of a table cell to a single line.
// Anchors keep their text only, line breaks become spaces and runs of
// whitespace (including the non-breaking padding JMA uses) collapse.
func CellText(innerHTML string) string {
	text := anchorTag.ReplaceAllString(innerHTML, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = ToText(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.Join(strings.Fields(text), " ")
}
