// Package validate checks user input before it reaches the services.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ErrInvalid = errors.New("invalid input")

var (
	MaxAmount = decimal.NewFromInt(1_000_000_000)

	usernamePattern   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	fullNamePattern   = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)
	employeeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	weakPatterns      = []*regexp.Regexp{
		regexp.MustCompile(`(012|123|234|345|456|567|678|789|890)`),
		regexp.MustCompile(`(abc|bcd|cde|def|efg|fgh|ghi|hij|ijk|jkl|klm|lmn|mno|nop|opq|pqr|qrs|rst|stu|tuv|uvw|vwx|wxy|xyz)`),
	}
)

const specialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Amount parses a money string such as "$1,250.50". The value must be
// positive, at most one billion and carry no more than two decimals.
func Amount(input string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(strings.NewReplacer(",", "", "$", "").Replace(input))
	if cleaned == "" {
		return decimal.Zero, invalid("amount cannot be empty")
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, invalid("invalid amount format %q", input)
	}
	switch {
	case amount.IsNegative():
		return decimal.Zero, invalid("amount cannot be negative")
	case amount.IsZero():
		return decimal.Zero, invalid("amount must be greater than zero")
	case amount.GreaterThan(MaxAmount):
		return decimal.Zero, invalid("amount is too large")
	case !amount.Equal(amount.Truncate(2)):
		return decimal.Zero, invalid("amount cannot have more than 2 decimal places")
	}
	return amount, nil
}

// Username must be 3 to 50 characters of letters, digits, '_' or '-',
// starting with a letter.
func Username(username string) error {
	switch n := len(username); {
	case n == 0:
		return invalid("username cannot be empty")
	case n < 3:
		return invalid("username must be at least 3 characters long")
	case n > 50:
		return invalid("username cannot be longer than 50 characters")
	}
	if !usernamePattern.MatchString(username) {
		return invalid("username must start with a letter and contain only letters, numbers, underscores and hyphens")
	}
	return nil
}

// Password enforces length, character classes and rejects runs such as
// "aaaa", "123" or "abc".
func Password(password string, minLength int) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n == 0:
		return invalid("password cannot be empty")
	case n < minLength:
		return invalid("password must be at least %d characters long", minLength)
	case n > 128:
		return invalid("password cannot be longer than 128 characters")
	}

	var upper, lower, digit, special bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		}
		if strings.ContainsRune(specialChars, c) {
			special = true
		}
	}
	switch {
	case !upper:
		return invalid("password must contain at least one uppercase letter")
	case !lower:
		return invalid("password must contain at least one lowercase letter")
	case !digit:
		return invalid("password must contain at least one number")
	case !special:
		return invalid("password must contain at least one special character")
	}

	lowered := strings.ToLower(password)
	if hasRepeat(lowered, 4) {
		return invalid("password contains weak patterns")
	}
	for _, p := range weakPatterns {
		if p.MatchString(lowered) {
			return invalid("password contains weak patterns")
		}
	}
	return nil
}

// hasRepeat reports whether any rune occurs n times in a row.
func hasRepeat(s string, n int) bool {
	var prev rune
	run := 0
	for _, c := range s {
		if c == prev {
			run++
		} else {
			prev, run = c, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// Email is optional; an empty string is valid.
func Email(email string) error {
	if email == "" {
		return nil
	}
	if len(email) > 254 {
		return invalid("email address is too long")
	}
	if !emailPattern.MatchString(email) {
		return invalid("invalid email format")
	}
	if strings.Contains(email, "..") {
		return invalid("email contains consecutive dots")
	}
	return nil
}

// FullName is optional; an empty string is valid.
func FullName(name string) error {
	if name == "" {
		return nil
	}
	switch n := utf8.RuneCountInString(name); {
	case n < 2:
		return invalid("full name must be at least 2 characters long")
	case n > 100:
		return invalid("full name cannot be longer than 100 characters")
	}
	if !fullNamePattern.MatchString(name) {
		return invalid("full name can only contain letters, spaces, hyphens and apostrophes")
	}
	return nil
}

// AccountNumber must be eight upper-case alphanumerics.
func AccountNumber(number string) error {
	if number == "" {
		return invalid("account number cannot be empty")
	}
	if len(number) != 8 {
		return invalid("account number must be exactly 8 characters")
	}
	for _, c := range number {
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return invalid("account number must be upper-case alphanumeric")
		}
	}
	return nil
}

func EmployeeID(id string) error {
	if n := len(id); n < 3 || n > 20 {
		return invalid("employee id must be between 3 and 20 characters")
	}
	if !employeeIDPattern.MatchString(id) {
		return invalid("employee id can only contain letters, numbers and hyphens")
	}
	return nil
}

// Description is optional; when present it must be 3 to 500 characters
// without control characters.
func Description(desc string) error {
	if desc == "" {
		return nil
	}
	if utf8.RuneCountInString(desc) > 500 {
		return invalid("description cannot be longer than 500 characters")
	}
	if utf8.RuneCountInString(strings.Join(strings.Fields(desc), " ")) < 3 {
		return invalid("description must be at least 3 characters long")
	}
	for _, c := range desc {
		if c < 32 && c != '\t' && c != '\n' && c != '\r' {
			return invalid("description contains invalid characters")
		}
	}
	return nil
}
