package proposal

import (
	"regexp"
	"strings"
)

// fencePattern matches a whole text wrapped in one markdown code fence with
// an optional language tag.
// Captures: (1) language, (2) content
var fencePattern = regexp.MustCompile(`(?s)^` + "```" + `(\w*)[ \t]*\r?\n(.*?)\r?\n?` + "```" + `$`)

// Unwrap strips exactly one leading and one trailing fence marker when the
// text, after trimming surrounding whitespace, is a single ```json or bare
// ``` block. Any other text is returned unchanged, so Unwrap is idempotent on
// already-unwrapped input.
func Unwrap(raw string) string {
	trimmed := strings.TrimSpace(raw)
	m := fencePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return raw
	}
	lang := strings.ToLower(m[1])
	if lang != "" && lang != "json" {
		return raw
	}
	return strings.TrimSpace(m[2])
}
