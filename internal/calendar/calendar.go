// Package calendar reduces timestamps to calendar days.
//
// Days are compared as plain "2006-01-02" strings rather than as timestamps so
// that a sale recorded a few minutes before midnight is never pulled into the
// next day by a timezone conversion.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DayFormat is the layout of a Day.
const DayFormat = "2006-01-02"

// Day is a calendar day in DayFormat.
type Day string

// DayOf returns the calendar day of t in loc. A nil loc means time.Local.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	return Day(t.In(loc).Format(DayFormat))
}

// ParseDay validates s and returns it as a Day. Single-digit months and days
// are accepted and normalized ("2025-7-1" becomes "2025-07-01").
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		t, err = time.Parse("2006-1-2", s)
	}
	if err != nil {
		return "", fmt.Errorf("invalid day %q, want format %q: %w", s, DayFormat, err)
	}
	return Day(t.Format(DayFormat)), nil
}

// Within reports whether d falls in [start, end], bounds included.
func (d Day) Within(start, end Day) bool {
	return d >= start && d <= end
}

func (d Day) String() string { return string(d) }
