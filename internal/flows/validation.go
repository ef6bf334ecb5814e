package flows

import (
	"regexp"
	"strings"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	namePattern     = regexp.MustCompile(`^[a-zA-Z\s'-]{2,50}$`)
	codePattern     = regexp.MustCompile(`^[0-9]{6}$`)
	idPattern       = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]+$`)
)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email (already normalized) is acceptable.
func ValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}

// ValidName reports whether name is 2-50 letters, spaces, apostrophes or hyphens.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// ValidCode reports whether code is a six-digit TOTP code.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// ValidID reports whether id is a plausible opaque identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// PasswordPolicyViolation returns a short reason when password breaks the
// policy, or "" when it is acceptable.
func PasswordPolicyViolation(password string) string {
	switch {
	case len(password) < minPasswordLen:
		return "too_short"
	case len(password) > maxPasswordLen:
		return "too_long"
	case !passwordCharset.MatchString(password):
		return "invalid_characters"
	case !strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyz"):
		return "missing_lowercase"
	case !strings.ContainsAny(password, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"):
		return "missing_uppercase"
	case !strings.ContainsAny(password, "0123456789"):
		return "missing_digit"
	case !strings.ContainsAny(password, "@$!%*?&"):
		return "missing_special"
	}
	return ""
}
