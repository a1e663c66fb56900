package core

import (
	"regexp"
	"strings"
)

const (
	MaxTrackingIDLength = 100
	MaxBinCodeLength    = 32
)

var identifierPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._/-]*$`)

// NormalizeID trims surrounding whitespace and upper-cases a scanned identifier.
func NormalizeID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ParseTrackingID normalizes and validates a tracking ID. field names the
// input in the returned validation error.
func ParseTrackingID(field, raw string) (string, error) {
	return parseIdentifier(field, raw, MaxTrackingIDLength)
}

// ParseBinCode normalizes and validates a bin code.
func ParseBinCode(field, raw string) (string, error) {
	return parseIdentifier(field, raw, MaxBinCodeLength)
}

func parseIdentifier(field, raw string, max int) (string, error) {
	id := NormalizeID(raw)
	switch {
	case id == "":
		return "", invalid(field, "%s is required", field)
	case len(id) > max:
		return "", invalid(field, "%s exceeds %d characters", field, max)
	case !identifierPattern.MatchString(id):
		return "", invalid(field, "%s %q contains unsupported characters", field, id)
	}
	return id, nil
}
