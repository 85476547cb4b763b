package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

const (
	minAge = 18
	maxAge = 120

	maxNameLength  = 100
	maxEmailLength = 255
)

var namePattern = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)

// NormalizeEmail canonicalizes and validates an email address before it is
// persisted or compared. Lowercasing keeps uniqueness case-insensitive.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if len(trimmed) > maxEmailLength {
		return "", fmt.Errorf("%w: email must be <= %d characters", ErrInvalidInput, maxEmailLength)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return trimmed, nil
}

// ValidateName accepts letters, spaces, hyphens, and apostrophes only.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(trimmed) < 2 {
		return "", fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidInput)
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: name must be <= %d characters", ErrInvalidInput, maxNameLength)
	}
	if !namePattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: name can only contain letters, spaces, hyphens, and apostrophes", ErrInvalidInput)
	}
	return trimmed, nil
}

// NormalizePhone strips separators and requires exactly 10 digits.
func NormalizePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", fmt.Errorf("%w: phone number is required", ErrInvalidInput)
	}
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() != 10 {
		return "", fmt.Errorf("%w: phone number must be exactly 10 digits", ErrInvalidInput)
	}
	return digits.String(), nil
}

// ValidateAge bounds registrant age to the accepted range.
func ValidateAge(age int) error {
	if age < minAge {
		return fmt.Errorf("%w: age must be %d or older", ErrInvalidInput, minAge)
	}
	if age > maxAge {
		return fmt.Errorf("%w: age must be a reasonable number", ErrInvalidInput)
	}
	return nil
}
