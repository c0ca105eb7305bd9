// Package timeutil provides the office-local clock used for attendance.
// A check-in is classified by the wall-clock time where the office is,
// so every date and time string in the attendance document is rendered
// in a single configured location.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

var (
	mu       sync.RWMutex
	location = time.Local
)

// SetLocation sets the office timezone used by every helper in this package.
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	mu.Lock()
	location = loc
	mu.Unlock()
}

// LoadLocation resolves an IANA zone name ("Asia/Almaty", "UTC", "Local").
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Location returns the configured office timezone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return location
}

// Now returns the current time in the office timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// ToLocal converts a time to the office timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(Location())
}

// Common date/time formats.
const (
	// FormatDate is the record date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the record time format (HH:MM, 24h).
	FormatTime = "15:04"
	// FormatHumanTimestamp mirrors the en-US locale string used in commit messages.
	FormatHumanTimestamp = "1/2/2006, 3:04:05 PM"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in the office timezone.
func FormatDateStr(t time.Time) string {
	return ToLocal(t).Format(FormatDate)
}

// HumanTimestamp renders a time for commit messages.
func HumanTimestamp(t time.Time) string {
	return ToLocal(t).Format(FormatHumanTimestamp)
}

// ISOTimestamp renders an RFC 3339 instant in UTC with millisecond precision.
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ParseDate parses a date string (YYYY-MM-DD) in the office timezone.
// The round trip check rejects values such as "2024-02-30".
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(FormatDate, value, Location())
	if err != nil {
		return time.Time{}, err
	}
	if t.Format(FormatDate) != value {
		return time.Time{}, fmt.Errorf("date %q is not canonical", value)
	}
	return t, nil
}

// Today returns today's date string in the office timezone.
func Today() string {
	return FormatDateStr(Now())
}
