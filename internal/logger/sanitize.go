package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength caps URL paths in log fields
	MaxPathLength = 500
	// MaxErrorMessageLength caps error messages in log fields
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength caps all other strings in log fields
	MaxGeneralStringLength = 2000
)

// SanitizePath strips control characters from a URL path and truncates it
// for logging. Invalid UTF-8 is repaired first.
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError renders an error for logging with the same filtering as
// SanitizeString.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeString repairs UTF-8, drops control characters other than
// whitespace, and truncates to maxLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	s = builder.String()

	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}
