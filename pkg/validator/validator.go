// Package validator provides a small rule-based input validator for
// submission fields.
package validator

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ValidationError represents a single failed check on one field.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of failed checks.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(ve))
	for _, err := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether any error was recorded for field.
func (ve ValidationErrors) Has(field string) bool {
	for _, err := range ve {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Get returns all messages recorded for field.
func (ve ValidationErrors) Get(field string) []string {
	var messages []string
	for _, err := range ve {
		if err.Field == field {
			messages = append(messages, err.Message)
		}
	}
	return messages
}

// Rule is a single validation check paired with its failure error.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Apply executes rules in order and returns the accumulated
// ValidationErrors, or nil when everything passed.
func Apply(rules ...Rule) error {
	var verrs ValidationErrors
	for _, rule := range rules {
		if !rule.Check() {
			verrs = append(verrs, rule.Error)
		}
	}
	if len(verrs) == 0 {
		return nil
	}
	return verrs
}

// Extract unwraps ValidationErrors from err, or nil when err carries none.
func Extract(err error) ValidationErrors {
	if err == nil {
		return nil
	}
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	return nil
}

// Required fails when value is empty after trimming whitespace.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "is required"},
	}
}

// ValidEmail fails when value is not a parseable single address.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			addr, err := mail.ParseAddress(value)
			return err == nil && addr.Address == value
		},
		Error: ValidationError{Field: field, Message: "must be a valid email address"},
	}
}

// MinLen fails when value is shorter than n bytes.
func MinLen(field, value string, n int) Rule {
	return Rule{
		Check: func() bool { return len(value) >= n },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters", n)},
	}
}

// MaxLen fails when value is longer than n bytes.
func MaxLen(field, value string, n int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= n },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", n)},
	}
}

// Matches fails when value differs from other, e.g. a password confirmation.
func Matches(field, value, other string) Rule {
	return Rule{
		Check: func() bool { return value == other },
		Error: ValidationError{Field: field, Message: "does not match"},
	}
}
