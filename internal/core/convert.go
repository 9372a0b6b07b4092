package core

// convert.go provides primitive coercions for raw AGS cell values.
//
// AGS cells are always strings. An empty cell means "no value" and coerces
// to nil for every kind. Numbers and dates that cannot be parsed are field
// errors; booleans and text never fail.

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a plain decimal or scientific number.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateLayouts are the AGS DT formats in the order they are tried.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04",
	"2006-01",
}

var (
	errInvalidNumber = errors.New("invalid number format")
	errInvalidDate   = errors.New("invalid date format (use YYYY-MM-DD or YYYY-MM-DDThh:mm)")
)

// ParseNumber parses a numeric AGS value.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, errInvalidNumber
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errInvalidNumber
	}
	return f, nil
}

// ParseDate parses an AGS date or datetime value. Results are UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errInvalidDate
}

// ParseBool recognizes the usual yes/no spellings. ok is false for anything else.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "t", "1":
		return true, true
	case "n", "no", "false", "f", "0":
		return false, true
	default:
		return false, false
	}
}

// Coerce converts a raw cell to the Go value for kind.
func Coerce(kind Kind, raw *string) (any, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	s := *raw

	switch kind {
	case KindNumber:
		return ParseNumber(s)
	case KindDate:
		return ParseDate(s)
	case KindBool:
		if b, ok := ParseBool(s); ok {
			return b, nil
		}
		return s, nil
	default:
		return s, nil
	}
}
