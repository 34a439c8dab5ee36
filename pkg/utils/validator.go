package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	controlChars     = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	twoDigitCode     = regexp.MustCompile(`^[0-9]{2}$`)
	documentTypeCode = regexp.MustCompile(`^[A-Z]$`)
)

// ValidateContextCode validates a catalog context code triple, e.g. ("A", "01", "02")
func ValidateContextCode(documentType, meetingType, expenseType string) error {
	if !documentTypeCode.MatchString(documentType) {
		return fmt.Errorf("document type code must be one upper case letter: %q", documentType)
	}
	if !twoDigitCode.MatchString(meetingType) {
		return fmt.Errorf("meeting type code must be two digits: %q", meetingType)
	}
	if !twoDigitCode.MatchString(expenseType) {
		return fmt.Errorf("expense type code must be two digits: %q", expenseType)
	}
	return nil
}

// ValidateRequired rejects blank values
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
