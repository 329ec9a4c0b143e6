package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time of day")
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

// Canonical weekday names indexed by time.Weekday (0 = Sunday).
var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var fullWeekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

var weekdayAliases = map[string]string{
	"sun": "Sun", "sunday": "Sun",
	"mon": "Mon", "monday": "Mon",
	"tue": "Tue", "tues": "Tue", "tuesday": "Tue",
	"wed": "Wed", "weds": "Wed", "wednesday": "Wed",
	"thu": "Thu", "thur": "Thu", "thurs": "Thu", "thursday": "Thu",
	"fri": "Fri", "friday": "Fri",
	"sat": "Sat", "saturday": "Sat",
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hours   int
	Minutes int
}

// TotalMinutes returns minutes since midnight.
func (t TimeOfDay) TotalMinutes() int {
	return t.Hours*60 + t.Minutes
}

// String formats t as zero-padded HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hours, t.Minutes)
}

// Add shifts t by n minutes. The result wraps around midnight and never
// rolls into another date.
func (t TimeOfDay) Add(n int) TimeOfDay {
	total := ((t.TotalMinutes()+n)%minutesPerDay + minutesPerDay) % minutesPerDay
	return TimeOfDay{Hours: total / 60, Minutes: total % 60}
}

// FromMinutes builds a TimeOfDay from minutes since midnight, wrapping as Add does.
func FromMinutes(total int) TimeOfDay {
	return TimeOfDay{}.Add(total)
}

// TimeOf returns the wall-clock time of t in its own location.
func TimeOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hours: t.Hour(), Minutes: t.Minute()}
}

// FormatDate formats the calendar date of t as YYYY-MM-DD in t's own location.
func FormatDate(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// ParseDate parses YYYY-MM-DD as midnight in loc (UTC when loc is nil).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// ParseTime parses "HH:MM". A trailing ":SS" part is accepted and truncated.
func ParseTime(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}
	return TimeOfDay{Hours: h, Minutes: m}, nil
}

// MinutesPerDay is the end-of-day bound, written "24:00".
const MinutesPerDay = 24 * 60

// ParseEndOfRange parses the end bound of a time range as minutes since
// midnight. Unlike ParseTime it accepts "24:00" for the end of the day.
func ParseEndOfRange(s string) (int, error) {
	switch strings.TrimSpace(s) {
	case "24:00", "24:00:00":
		return MinutesPerDay, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return 0, err
	}
	return t.TotalMinutes(), nil
}

// AddMinutes adds n minutes to an "HH:MM" string, wrapping within the day.
func AddMinutes(hhmm string, n int) (string, error) {
	t, err := ParseTime(hhmm)
	if err != nil {
		return "", err
	}
	return t.Add(n).String(), nil
}

// CompareTime returns the difference a-b in minutes.
func CompareTime(a, b TimeOfDay) int {
	return a.TotalMinutes() - b.TotalMinutes()
}

// NormalizeWeekday maps a weekday name to its canonical three-letter form.
// Matching is case-insensitive and accepts full names, abbreviations and the
// irregular "tues"/"thurs" forms. ok is false for unknown names; callers treat
// that as an excluded day.
func NormalizeWeekday(name string) (day string, ok bool) {
	day, ok = weekdayAliases[strings.ToLower(strings.TrimSpace(name))]
	return day, ok
}

// WeekdayName returns the canonical short name of t's weekday.
func WeekdayName(t time.Time) string {
	return weekdayNames[t.Weekday()]
}

// FullWeekdayName returns the full English name of t's weekday.
func FullWeekdayName(t time.Time) string {
	return fullWeekdayNames[t.Weekday()]
}

// DateOnly truncates t to midnight of its calendar date in t's location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the Sunday starting t's week.
func StartOfWeek(t time.Time) time.Time {
	d := DateOnly(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// At combines a calendar date with a wall-clock time in the date's location.
func At(date time.Time, t TimeOfDay) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hours, t.Minutes, 0, 0, date.Location())
}
