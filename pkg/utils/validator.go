package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxReferenceLength bounds policy and customer references
const MaxReferenceLength = 128

// MaxTextLength bounds free-text fields such as descriptions and reasons
const MaxTextLength = 4000

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// ValidateReference checks an identifier issued by another service
func ValidateReference(field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(value) > MaxReferenceLength {
		return fmt.Errorf("%s exceeds %d characters", field, MaxReferenceLength)
	}
	if strings.ContainsAny(value, " \t\r\n") || controlChars.MatchString(value) {
		return fmt.Errorf("%s must not contain whitespace or control characters", field)
	}
	return nil
}

// ValidateText checks the length of a free-text field
func ValidateText(field, value string) error {
	if utf8.RuneCountInString(value) > MaxTextLength {
		return fmt.Errorf("%s exceeds %d characters", field, MaxTextLength)
	}
	return nil
}

// SanitizeString removes control characters except tab and newlines, then trims
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
