package waitlist

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// sanitizeText strips any markup from user-supplied profile text. bluemonday
// escapes what it keeps, so the result is unescaped back to plain text.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// optionalText returns nil for values that are blank once sanitized.
func optionalText(s string) *string {
	clean := sanitizeText(s)
	if clean == "" {
		return nil
	}
	return &clean
}
