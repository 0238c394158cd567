// Package sanitize normalizes untrusted text (identifiers, URLs, filenames)
// before it reaches the store, logs, or an outbound request.
package sanitize

import "strings"

var hazards = strings.NewReplacer(
	"<", "",
	">", "",
	"\"", "",
	"'", "",
	"`", "",
)

// String strips markup-hazard characters and surrounding whitespace.
// It is idempotent.
func String(value string) string {
	return strings.TrimSpace(hazards.Replace(value))
}

// Any sanitizes value when it is a string and returns "" otherwise.
func Any(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return String(s)
}
