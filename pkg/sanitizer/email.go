// Package sanitizer normalizes untrusted identity input before storage or
// comparison. All functions are pure and preserve invalid input unchanged so
// validation stays the caller's responsibility.
package sanitizer

import (
	"regexp"
	"strings"
)

var (
	dotRegex      = regexp.MustCompile(`\.{2,}`)
	usernameRegex = regexp.MustCompile(`[^a-z0-9._-]+`)
)

// NormalizeEmail lowercases and trims an email address and consolidates
// consecutive dots in the local part. Invalid formats are returned as-is.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := dotRegex.ReplaceAllString(parts[0], ".")
	local = strings.Trim(local, ".")

	return local + "@" + parts[1]
}

// EmailLocalPart returns the part before the @ of a normalized email, or ""
// for malformed input.
func EmailLocalPart(email string) string {
	parts := strings.Split(NormalizeEmail(email), "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[0]
}

// MaskEmail hides the local part while preserving the full domain so users
// can still recognize their own address.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := parts[0]
	switch len(local) {
	case 0:
		return email
	case 1:
		return "*@" + parts[1]
	default:
		return string(local[0]) + strings.Repeat("*", len(local)-1) + "@" + parts[1]
	}
}

// Username reduces an arbitrary string to a lowercase username candidate,
// keeping letters, digits, dots, dashes and underscores.
func Username(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = usernameRegex.ReplaceAllString(s, "")
	return strings.Trim(s, "._-")
}
