// Package validation checks user-supplied input before it reaches the vault
// service: account fields, credential metadata, and card numbers. Rules here
// are shape checks only; uniqueness and ownership are enforced at the
// database and service layers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 30
	passwordMinLength = 8
	labelMaxLength    = 100
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Email validates an email address shape.
func Email(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("email %q is not a valid address", email)
	}
	return nil
}

// Username validates an account username: 3-30 characters drawn from
// letters, digits, underscore, and hyphen.
func Username(username string) error {
	if len(username) < usernameMinLength || len(username) > usernameMaxLength {
		return fmt.Errorf("username must be %d-%d characters", usernameMinLength, usernameMaxLength)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("username may only contain letters, digits, underscore, and hyphen")
	}
	return nil
}

// Password validates password strength: at least 8 characters with an
// uppercase letter, a lowercase letter, and a digit.
func Password(password string) error {
	if len(password) < passwordMinLength {
		return fmt.Errorf("password must be at least %d characters", passwordMinLength)
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password must contain an uppercase letter, a lowercase letter, and a digit")
	}
	return nil
}

// Label validates a credential label: non-empty after trimming, at most 100
// characters.
func Label(label string) error {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return fmt.Errorf("label is required")
	}
	if len(trimmed) > labelMaxLength {
		return fmt.Errorf("label must be at most %d characters", labelMaxLength)
	}
	return nil
}

// CardNumber validates a payment card number: 12-19 digits passing the Luhn
// checksum. Spaces and hyphens are tolerated and stripped before checking.
func CardNumber(number string) error {
	digits := normalizeCardNumber(number)
	if len(digits) < 12 || len(digits) > 19 {
		return fmt.Errorf("card number must be 12-19 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("card number may only contain digits")
		}
	}
	if !luhnValid(digits) {
		return fmt.Errorf("card number failed checksum")
	}
	return nil
}

// CardBrand identifies the card network from the number prefix. Returns
// "Unknown" for unrecognized prefixes.
func CardBrand(number string) string {
	digits := normalizeCardNumber(number)
	switch {
	case strings.HasPrefix(digits, "4"):
		return "Visa"
	case strings.HasPrefix(digits, "5"):
		return "Mastercard"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "Amex"
	case strings.HasPrefix(digits, "6"):
		return "Discover"
	default:
		return "Unknown"
	}
}

func normalizeCardNumber(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(number)
}

// luhnValid implements the Luhn checksum over a digit string.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
