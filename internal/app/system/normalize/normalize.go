// internal/app/system/normalize/normalize.go
//
// Package normalize provides the canonical forms of user-supplied strings
// before they are stored or compared.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and collapses inner runs of spaces.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameCI returns the case/diacritics-insensitive sort key for a name.
func NameCI(s string) string {
	return text.Fold(Name(s))
}

// Role uppercases and trims a role name ("admin" -> "ADMIN").
func Role(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// InviteCode trims and lowercases an invite code. Codes are hex.
func InviteCode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query parameter value and preserves case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// ActivityType lowercases a resource-type filter. "all" becomes "".
func ActivityType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "all" {
		return ""
	}
	return s
}
