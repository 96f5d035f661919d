// internal/app/system/htmlsanitize/htmlsanitize.go
//
// Package htmlsanitize strips markup from user-supplied text before it is
// stored. Workspace names, descriptions, and profile fields are plain text;
// any HTML a client sends is removed rather than escaped.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every element and attribute.
var strict = bluemonday.StrictPolicy()

// PlainText removes all markup from s, decodes entities, and trims the
// result. Script and style bodies are dropped along with their tags.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains no tag-like sequences.
func IsPlainText(s string) bool {
	open := strings.Index(s, "<")
	if open < 0 {
		return true
	}
	return !strings.Contains(s[open:], ">")
}
