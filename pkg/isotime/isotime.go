// Package isotime parses and normalizes ISO-8601 timestamps.
//
// Normalized form is "YYYY-MM-DDTHH:MM:SS[.ffffff][+HH:MM]": microsecond
// precision when the sub-second part is non-zero, and a numeric offset only
// when the input carried zone information.
package isotime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid is returned for strings that are not ISO-8601 timestamps.
var ErrInvalid = errors.New("invalid ISO-8601 timestamp")

var zonedLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse reads an ISO-8601 timestamp. zoned reports whether the input carried
// an offset or "Z"; naive inputs are returned in UTC.
func Parse(s string) (t time.Time, zoned bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, ErrInvalid
	}
	for _, layout := range zonedLayouts {
		if parsed, perr := time.Parse(layout, s); perr == nil {
			return parsed, true, nil
		}
	}
	for _, layout := range naiveLayouts {
		if parsed, perr := time.Parse(layout, s); perr == nil {
			return parsed, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalid, s)
}

// Valid reports whether s parses as an ISO-8601 timestamp.
func Valid(s string) bool {
	_, _, err := Parse(s)
	return err == nil
}

// Format renders t in normalized form. zoned controls whether the offset is
// emitted.
func Format(t time.Time, zoned bool) string {
	var b strings.Builder
	b.WriteString(t.Format("2006-01-02T15:04:05"))
	if micros := t.Nanosecond() / 1000; micros != 0 {
		fmt.Fprintf(&b, ".%06d", micros)
	}
	if zoned {
		_, offset := t.Zone()
		sign := byte('+')
		if offset < 0 {
			sign = '-'
			offset = -offset
		}
		fmt.Fprintf(&b, "%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
	}
	return b.String()
}

// Normalize converts a timestamp input into normalized form. Accepted inputs
// are time.Time, *time.Time and ISO-8601 strings.
func Normalize(v any) (string, error) {
	switch value := v.(type) {
	case time.Time:
		if value.IsZero() {
			return "", fmt.Errorf("%w: zero time", ErrInvalid)
		}
		return Format(value, true), nil
	case *time.Time:
		if value == nil {
			return "", fmt.Errorf("%w: nil time", ErrInvalid)
		}
		return Normalize(*value)
	case string:
		t, zoned, err := Parse(value)
		if err != nil {
			return "", err
		}
		return Format(t, zoned), nil
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalid, v)
	}
}
