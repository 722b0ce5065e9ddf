package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// SanitizeText strips every HTML tag from user text and trims surrounding whitespace.
// Markup is rendered from markdown on the way out, never stored.
func SanitizeText(text string) string {
	// bluemonday escapes what it keeps, the stored form is plain text
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(text)))
}
