package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"zeiterfassung-backend/internal/parse"
)

// Shift statuses. Any other status value is an absence reason ("urlaub", "krankheit", ...).
const (
	ShiftNormal      = "normal"
	ShiftReplacement = "vertretung"
)

// TimeOfDay is a minute after midnight, exchanged as "HH:MM".
type TimeOfDay int

// String renders the value as "HH:MM".
func (t TimeOfDay) String() string { return parse.FormatClock(int(t)) }

// MarshalJSON encodes the value as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts "HH:MM" or "HH:MM:SS".
func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	m, err := parse.Clock(s)
	if err != nil {
		return err
	}
	*t = TimeOfDay(m)
	return nil
}

// Clock parses "HH:MM" into a TimeOfDay.
func Clock(s string) (TimeOfDay, error) {
	m, err := parse.Clock(s)
	return TimeOfDay(m), err
}

// Shift is a recurring weekly assignment of an employee to a site.
type Shift struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	EmployeeID     int64      `gorm:"index:idx_shift_slot;not null" json:"employee_id"`
	SiteID         int64      `gorm:"index:idx_shift_slot;not null" json:"object_id"`
	Weekday        int        `gorm:"index:idx_shift_slot;not null" json:"weekday"`
	StartTime      *TimeOfDay `gorm:"column:start_minute" json:"start_time"`
	EndTime        *TimeOfDay `gorm:"column:end_minute" json:"end_time"`
	PlannedHours   float64    `json:"planned_hours"`
	Status         string     `gorm:"size:32;not null;default:normal" json:"status"`
	ReplacementFor *int64     `json:"replacement_for,omitempty"`
}

// Owes reports whether the shift's employee is expected to work it.
func (s Shift) Owes() bool {
	switch strings.ToLower(s.Status) {
	case "", ShiftNormal, ShiftReplacement:
		return true
	}
	return false
}

// Range renders "HH:MM-HH:MM", with "?" for missing boundaries.
func (s Shift) Range() string {
	return fmtBoundary(s.StartTime) + "-" + fmtBoundary(s.EndTime)
}

func fmtBoundary(t *TimeOfDay) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

// Weekday is a weekday 0 (Monday) .. 6 (Sunday) that also decodes German day names.
type Weekday int

// UnmarshalJSON accepts a number or a German weekday name.
func (w *Weekday) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		if n < 0 || n > 6 {
			return fmt.Errorf("weekday %d out of range 0..6", n)
		}
		*w = Weekday(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("weekday must be a number or a name")
	}
	d, err := parse.Weekday(s)
	if err != nil {
		return err
	}
	*w = Weekday(d)
	return nil
}
