package domain

import (
	"fmt"
	"strings"
	"time"
)

// Canonical text layouts for date and datetime attributes.
const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04:05"
)

var inputLayouts = []string{
	DatetimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	DateLayout,
	"1/2/2006 15:04:05",
	"1/2/2006",
	"2006/01/02",
}

// ParseTime accepts the date and datetime spellings found in hand-written
// CSV sheets and returns the parsed instant.
func ParseTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// ParseDate returns raw normalised to DateLayout. A time of day is dropped.
func ParseDate(raw string) (string, error) {
	t, err := ParseTime(raw)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// ParseDatetime returns raw normalised to DatetimeLayout. A bare date is
// taken as midnight.
func ParseDatetime(raw string) (string, error) {
	t, err := ParseTime(raw)
	if err != nil {
		return "", err
	}
	return t.Format(DatetimeLayout), nil
}
