package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})(?::(\d{2}))?\s*$`)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// Clock parses a 24-hour "HH:MM" (or "HH:MM:SS") string into minutes after midnight.
// Seconds are accepted but dropped; the schedule works at minute granularity.
func Clock(raw string) (int, error) {
	m := clockRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", raw)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return 0, fmt.Errorf("time of day %q out of range", raw)
	}
	if m[3] != "" {
		if s, _ := strconv.Atoi(m[3]); s > 59 {
			return 0, fmt.Errorf("time of day %q out of range", raw)
		}
	}
	return h*60 + min, nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

var weekdayNames = []string{"Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag", "Sonntag"}

// Weekday maps a German weekday name or a digit "0".."6" to 0 (Monday) .. 6 (Sunday).
func Weekday(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("weekday %d out of range 0..6", n)
		}
		return n, nil
	}
	for i, name := range weekdayNames {
		if strings.EqualFold(name, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// WeekdayName returns the German name of weekday 0..6, or the number itself when out of range.
func WeekdayName(day int) string {
	if day < 0 || day > 6 {
		return strconv.Itoa(day)
	}
	return weekdayNames[day]
}

// WeekdayOf converts a time to the Monday=0 convention used by shifts.
func WeekdayOf(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Timestamp parses an ISO-like timestamp. Layouts without a zone are read in loc.
func Timestamp(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

// Date parses an ISO date (or the date part of an ISO timestamp).
func Date(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
}
