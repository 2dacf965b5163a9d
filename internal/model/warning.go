package model

import "time"

// Warning types raised by reconciliation.
const (
	WarningNoShow            = "no_show"
	WarningForgottenCheckout = "forgotten_checkout"
	WarningExcessiveHours    = "excessive_hours"
	WarningWrongSite         = "WRONG_OBJECT"
)

// Warning is a system-raised anomaly tied to an employee.
type Warning struct {
	ID         int64      `gorm:"primaryKey" json:"id"`
	EmployeeID int64      `gorm:"index;not null" json:"employee_id"`
	Type       string     `gorm:"column:warning_type;size:32;not null;index" json:"warning_type"`
	Message    string     `gorm:"type:text" json:"message"`
	Resolved   bool       `gorm:"column:is_resolved;not null;default:false" json:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy *int64     `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
