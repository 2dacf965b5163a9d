package model

import "time"

// Category is the tracking mode of an employee.
type Category string

const (
	// CategoryA employees are stamped automatically from their schedule.
	CategoryA Category = "A"
	// CategoryB employees confirm a whole shift with one tap.
	CategoryB Category = "B"
	// CategoryC employees check in and out manually, usually with GPS.
	CategoryC Category = "C"
)

// EmploymentMinijob marks employees with a monthly earnings cap.
const EmploymentMinijob = "minijob"

// Employee is a staff member who can be scheduled and stamped.
type Employee struct {
	ID                 int64     `gorm:"primaryKey" json:"id"`
	UserID             *int64    `gorm:"uniqueIndex" json:"user_id,omitempty"`
	PersonalNr         string    `gorm:"uniqueIndex;size:32" json:"personal_nr"`
	FirstName          string    `gorm:"size:128" json:"first_name"`
	LastName           string    `gorm:"size:128" json:"last_name"`
	Category           Category  `gorm:"size:1;not null;default:C" json:"category"`
	HourlyRate         float64   `gorm:"not null;default:15" json:"hourly_rate"`
	HourlyRateStandard float64   `json:"hourly_rate_standard"`
	HourlyRateWindow   float64   `json:"hourly_rate_window"`
	HourlyRateBasic    float64   `json:"hourly_rate_basic"`
	GPSRequired        bool      `gorm:"not null" json:"gps_required"`
	EmploymentType     string    `gorm:"size:32" json:"employment_type"`
	MaxMonthlyAmount   float64   `json:"max_monthly_amount"`
	Active             bool      `gorm:"not null;index" json:"active"`
	CreatedAt          time.Time `json:"created_at"`
}

// FullName returns "First Last".
func (e Employee) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// EffectiveCategory treats an empty category as C.
func (e Employee) EffectiveCategory() Category {
	if e.Category == "" {
		return CategoryC
	}
	return e.Category
}
