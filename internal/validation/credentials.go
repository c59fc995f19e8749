package validation

import "regexp"

const (
	UsernameMinLength = 3
	UsernameMaxLength = 20
	PasswordMinLength = 8
	PasswordMaxLength = 64
)

var (
	usernameRe  = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	hasLetterRe = regexp.MustCompile(`[a-zA-Z]`)
	hasDigitRe  = regexp.MustCompile(`[0-9]`)
)

// ValidateUsername applies the signup rules: length bounds plus an
// alphanumeric-and-underscore character set.
func ValidateUsername(username string) *Error {
	if username == "" {
		return fail("username_required")
	}
	if len(username) < UsernameMinLength {
		return fail("username_too_short")
	}
	if len(username) > UsernameMaxLength {
		return fail("username_too_long")
	}
	if !usernameRe.MatchString(username) {
		return fail("username_invalid")
	}
	return nil
}

// ValidatePassword applies the signup rules: length bounds plus a minimal
// complexity requirement of one letter and one digit.
func ValidatePassword(password string) *Error {
	if password == "" {
		return fail("password_required")
	}
	if len(password) < PasswordMinLength {
		return fail("password_too_short")
	}
	if len(password) > PasswordMaxLength {
		return fail("password_too_long")
	}
	if !hasLetterRe.MatchString(password) || !hasDigitRe.MatchString(password) {
		return fail("password_invalid")
	}
	return nil
}
