package account

import (
	"fmt"
	"unicode"
)

// minPasswordLength is the minimum number of characters in a password.
const minPasswordLength = 12

// ErrWeakPassword is returned when a password fails the strength policy.
var ErrWeakPassword = fmt.Errorf(
	"password is too weak (must be at least %d characters and include upper, lower, "+
		"number, and symbol)",
	minPasswordLength,
)

// CheckPassword returns ErrWeakPassword unless password meets the policy.
func CheckPassword(password string) error {
	if !isSecurePassword(password) {
		return ErrWeakPassword
	}
	return nil
}

func isSecurePassword(password string) bool {
	if len([]rune(password)) < minPasswordLength {
		return false
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
