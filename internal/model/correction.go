package model

import "time"

// Correction types.
const (
	CorrectionCheckIn  = "check_in"
	CorrectionCheckOut = "check_out"
	CorrectionSite     = "object"
	CorrectionDelete   = "delete"
)

// Correction statuses.
const (
	CorrectionPending  = "pending"
	CorrectionApproved = "approved"
	CorrectionRejected = "rejected"
)

// CorrectionRequest is an employee-proposed change to one time entry.
type CorrectionRequest struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	EmployeeID    int64      `gorm:"index;not null" json:"employee_id"`
	TimeEntryID   int64      `gorm:"index;not null" json:"time_entry_id"`
	Type          string     `gorm:"column:correction_type;size:32;not null" json:"correction_type"`
	OldValue      string     `json:"old_value"`
	NewValue      string     `json:"new_value"`
	Reason        string     `gorm:"type:text" json:"reason"`
	Status        string     `gorm:"size:16;not null;default:pending;index" json:"status"`
	AdminResponse string     `gorm:"type:text" json:"admin_response"`
	ProcessedBy   *int64     `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
