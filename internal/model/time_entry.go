package model

import "time"

// DefaultServiceType is the service recorded on entries when none is given.
const DefaultServiceType = "Unterhaltsreinigung"

// TimeEntry is one continuous span of work of an employee at a site.
// CheckOut is nil while the entry is open.
type TimeEntry struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	EmployeeID  int64      `gorm:"index;not null" json:"employee_id"`
	SiteID      int64      `gorm:"index;not null" json:"object_id"`
	CheckIn     time.Time  `gorm:"index;not null" json:"check_in"`
	CheckOut    *time.Time `gorm:"index" json:"check_out"`
	Lat         *float64   `json:"gps_lat,omitempty"`
	Lng         *float64   `json:"gps_lng,omitempty"`
	CheckOutLat *float64   `json:"check_out_lat,omitempty"`
	CheckOutLng *float64   `json:"check_out_lng,omitempty"`
	IsManual    bool       `gorm:"not null;default:false" json:"is_manual_entry"`
	Notes       string     `gorm:"type:text" json:"notes"`
	ServiceType string     `gorm:"size:64" json:"service_type"`
	HourlyRate  float64    `json:"hourly_rate"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Open reports whether the entry has no check-out yet.
func (e TimeEntry) Open() bool { return e.CheckOut == nil }

// Duration is the worked span, measured against now for open entries.
func (e TimeEntry) Duration(now time.Time) time.Duration {
	if e.CheckOut != nil {
		return e.CheckOut.Sub(e.CheckIn)
	}
	return now.Sub(e.CheckIn)
}

// AppendNote adds text to the notes, separated by a space.
func (e *TimeEntry) AppendNote(text string) {
	if e.Notes == "" {
		e.Notes = text
		return
	}
	e.Notes += " " + text
}

// BreakEntry is a pause nested inside one time entry. End is nil while running.
type BreakEntry struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	TimeEntryID int64      `gorm:"index;not null" json:"time_entry_id"`
	Start       time.Time  `gorm:"column:start_time;not null" json:"start_time"`
	End         *time.Time `gorm:"column:end_time" json:"end_time"`
	IsPaid      bool       `gorm:"not null;default:false" json:"is_paid"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Duration of the break, measured against now while running.
func (b BreakEntry) Duration(now time.Time) time.Duration {
	if b.End != nil {
		return b.End.Sub(b.Start)
	}
	return now.Sub(b.Start)
}
