package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateTimeLayout is the ISO-8601 local date-time used in storage and payloads.
	DateTimeLayout = "2006-01-02T15:04:05"
	DisplayLayout  = "2006-01-02 15:04"
	DateLayout     = "2006-01-02"
)

var parseLayouts = []string{
	DateTimeLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	DisplayLayout,
	"2006-01-02 15:04:05",
}

// Wall keeps the wall-clock fields of t and drops its zone. All DueDateTime
// values are carried in UTC so comparisons are purely wall-clock.
func Wall(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// At converts a wall-clock value into an instant in loc.
func At(wall time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc)
}

func FormatDateTime(t time.Time) string {
	return Wall(t).Format(DateTimeLayout)
}

func FormatDisplay(t time.Time) string {
	return t.Format(DisplayLayout)
}

// ParseDateTime parses a local date-time with or without seconds.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Wall(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q (use YYYY-MM-DDTHH:MM)", s)
}
