package model

import "time"

// CustomerHours holds the default payable hours of a customer.
type CustomerHours struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	CustomerID   int64     `gorm:"uniqueIndex;not null" json:"customer_id"`
	DefaultHours float64   `gorm:"not null" json:"default_hours"`
	CleaningType string    `gorm:"size:32;default:unterhalt" json:"cleaning_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// SpecialRule overrides payable hours (and optionally rate) for one employee at one customer.
type SpecialRule struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	EmployeeID   int64     `gorm:"index:idx_rule_pair;not null" json:"employee_id"`
	CustomerID   int64     `gorm:"index:idx_rule_pair;not null" json:"customer_id"`
	SpecialHours float64   `json:"special_hours"`
	SpecialRate  *float64  `json:"special_rate,omitempty"`
	Note         string    `json:"note"`
	Active       bool      `gorm:"not null" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
