// internal/app/system/authutil/password.go
package authutil

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// bcryptCost is the work factor for stored password hashes.
const bcryptCost = 12

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("password must be at most %d characters", MaxPasswordLength)
	ErrPasswordWeak     = errors.New("password must contain at least one uppercase letter, one lowercase letter, and one number")
	ErrPasswordCommon   = errors.New("password is too common")
)

// commonPasswords is a short deny-list checked case-insensitively.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password12": {},
	"password123": {},
	"12345678":   {},
	"123456789":  {},
	"qwerty123":  {},
	"qwertyuiop": {},
	"iloveyou1":  {},
	"letmein1":   {},
	"welcome1":   {},
	"welcome123": {},
	"football1":  {},
	"abc12345":   {},
	"admin123":   {},
	"changeme1":  {},
}

// ValidatePassword checks length, the common-password list, and character
// classes, in that order.
func ValidatePassword(pw string) error {
	n := len([]rune(pw))
	if n < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if n > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if _, bad := commonPasswords[strings.ToLower(pw)]; bad {
		return ErrPasswordCommon
	}

	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrPasswordWeak
	}
	return nil
}

// PasswordRules describes the password policy for error messages.
func PasswordRules() string {
	return fmt.Sprintf("Passwords must be %d-%d characters and include an uppercase letter, a lowercase letter, and a number.",
		MinPasswordLength, MaxPasswordLength)
}

// HashPassword returns a bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether pw matches hash. A malformed or empty hash
// never matches.
func CheckPassword(pw, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
