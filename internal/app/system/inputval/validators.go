package inputval

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/dalemusser/waffle/toolkit/validate"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsValidEmail reports whether s is a bare address: no display name, a
// single @, and no empty dot-separated labels on either side.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return false
	}
	if !validDotted(local) || !validDotted(domain) {
		return false
	}
	return validate.SimpleEmailValid(s)
}

// validDotted rejects leading, trailing, and doubled dots.
func validDotted(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	return !strings.Contains(s, "..")
}

// IsValidHTTPURL reports whether s is an absolute http or https URL.
func IsValidHTTPURL(s string) bool {
	return urlutil.IsValidAbsHTTPURL(strings.TrimSpace(s))
}

// IsValidObjectID reports whether s is a 24-character hex ObjectID.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	return err == nil
}
