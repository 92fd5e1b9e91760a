// Package timeutil provides calendar-day helpers for streak tracking.
// Streaks are counted in whole calendar days of a configured time zone, so
// an activity at 23:50 and one at 00:10 the next morning are one day apart
// even though only twenty minutes passed.
//
// A calendar date is represented as a time.Time at UTC midnight of that
// civil date. This is the value pgx produces for DATE columns and keeps
// day arithmetic free of DST effects.
package timeutil

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DefaultLocation is used when no zone is configured.
var DefaultLocation = time.UTC

// LoadLocation resolves an IANA zone name, falling back to UTC for "".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

// Date creates a calendar date value.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CalendarDate returns the civil date of t as observed in loc.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = DefaultLocation
	}
	local := t.In(loc)
	return Date(local.Year(), local.Month(), local.Day())
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) time.Time {
	return CalendarDate(time.Now(), loc)
}

// DaysBetween returns the signed number of calendar days from one date to
// another. Both arguments are normalized to their civil date in UTC first,
// so callers may pass values produced by CalendarDate or read from a DATE column.
func DaysBetween(from, to time.Time) int {
	a := Date(from.UTC().Year(), from.UTC().Month(), from.UTC().Day())
	b := Date(to.UTC().Year(), to.UTC().Month(), to.UTC().Day())
	return int(b.Sub(a).Hours() / 24)
}

// AddDays shifts a calendar date by n days.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// IsSameDay checks if two calendar dates are the same.
func IsSameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}

// IsConsecutiveDay checks if b is the day after a.
func IsConsecutiveDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 1
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}
