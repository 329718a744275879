package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeOfDay is returned for values that are not HH:MM within 00:00-23:59
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time without a date or zone
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an "HH:MM" value. A single-digit hour is accepted;
// signs, spaces and any other non-digit byte are not.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) < 1 || len(h) > 2 || len(m) != 2 || !digits(h) || !digits(m) {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}

	hour, _ := strconv.Atoi(h)
	minute, _ := strconv.Atoi(m)
	if hour > 23 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String formats the value as HH:MM
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On returns the absolute instant of this time of day on the calendar day of
// date, interpreted in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
}

// DateOf truncates t to midnight UTC of its calendar day, dropping the zone
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartOfDay returns local midnight of the day containing t in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	y, m, d := lt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ValidateTimes checks every value with ParseTimeOfDay
func ValidateTimes(times []string) error {
	if len(times) == 0 {
		return fmt.Errorf("%w: at least one time of day is required", ErrInvalidTimeOfDay)
	}
	for _, s := range times {
		if _, err := ParseTimeOfDay(s); err != nil {
			return err
		}
	}
	return nil
}
