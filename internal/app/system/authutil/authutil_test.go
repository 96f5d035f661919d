package authutil

import (
	"strings"
	"testing"
)

func TestValidatePassword_Valid(t *testing.T) {
	validPasswords := []string{
		"Secret123",
		"MyP@ssw0rd",
		"Abcdefg1", // exactly the minimum
	}

	for _, pw := range validPasswords {
		if err := ValidatePassword(pw); err != nil {
			t.Errorf("expected %q to be valid, got error: %v", pw, err)
		}
	}
}

func TestValidatePassword_TooShort(t *testing.T) {
	for _, pw := range []string{"", "a", "Ab1", "Abcde12"} {
		if err := ValidatePassword(pw); err != ErrPasswordTooShort {
			t.Errorf("expected ErrPasswordTooShort for %q, got %v", pw, err)
		}
	}
}

func TestValidatePassword_TooLong(t *testing.T) {
	longPassword := "Aa1" + strings.Repeat("a", 126) // 129 characters

	if err := ValidatePassword(longPassword); err != ErrPasswordTooLong {
		t.Errorf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestValidatePassword_AtMaxLength(t *testing.T) {
	maxPassword := "Aa1" + strings.Repeat("a", 125) // 128 characters

	if err := ValidatePassword(maxPassword); err != nil {
		t.Errorf("expected password at max length to be valid, got %v", err)
	}
}

func TestValidatePassword_Weak(t *testing.T) {
	weak := []string{
		"alllowercase1", // no upper
		"ALLUPPERCASE1", // no lower
		"NoDigitsHere",  // no digit
	}

	for _, pw := range weak {
		if err := ValidatePassword(pw); err != ErrPasswordWeak {
			t.Errorf("expected ErrPasswordWeak for %q, got %v", pw, err)
		}
	}
}

func TestValidatePassword_CommonCaseInsensitive(t *testing.T) {
	for _, pw := range []string{"Password1", "PASSWORD123", "Welcome1", "Admin123"} {
		if err := ValidatePassword(pw); err != ErrPasswordCommon {
			t.Errorf("expected ErrPasswordCommon for %q, got %v", pw, err)
		}
	}
}

func TestHashPassword_Valid(t *testing.T) {
	password := "SecurePassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" || hash == password {
		t.Fatalf("unexpected hash %q", hash)
	}
	// bcrypt hashes start with $2a$ or $2b$
	if hash[0] != '$' {
		t.Error("expected bcrypt hash to start with $")
	}
}

func TestHashPassword_DifferentHashesForSamePassword(t *testing.T) {
	h1, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	h2, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if h1 == h2 {
		t.Error("expected different hashes for same password (random salt)")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("SecurePassword123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	tests := []struct {
		name string
		pw   string
		hash string
		want bool
	}{
		{"correct", "SecurePassword123", hash, true},
		{"incorrect", "WrongPassword456", hash, false},
		{"empty password", "", hash, false},
		{"invalid hash", "SecurePassword123", "not-a-valid-hash", false},
		{"empty hash", "SecurePassword123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.pw, tt.hash); got != tt.want {
				t.Errorf("CheckPassword = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasswordRules(t *testing.T) {
	rules := PasswordRules()
	if !strings.Contains(rules, "8") || !strings.Contains(rules, "128") {
		t.Errorf("expected PasswordRules to mention the length bounds, got %q", rules)
	}
}
