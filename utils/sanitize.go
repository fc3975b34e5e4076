package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.StrictPolicy()

// SanitizeText strips all markup from client-supplied text. Identities and
// wallet addresses end up inside HTML-mode bot messages, so they must carry
// no tags at all.
func SanitizeText(input string) string {
	return sanitizer.Sanitize(input)
}
