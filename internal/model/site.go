package model

import "time"

// Customer owns one or more sites.
type Customer struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:256;not null" json:"name"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`

	// Associations
	Sites []Site `gorm:"foreignKey:CustomerID" json:"-"`
}

// Site is a customer location where cleaning work happens.
type Site struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	CustomerID int64     `gorm:"index;not null" json:"customer_id"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	Address    string    `gorm:"size:512" json:"address"`
	Lat        *float64  `json:"lat,omitempty"`
	Lng        *float64  `json:"lng,omitempty"`
	RadiusM    int       `gorm:"not null;default:100" json:"radius_m"`
	Active     bool      `gorm:"not null" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasCoordinates reports whether the site can be geofenced.
func (s Site) HasCoordinates() bool {
	return s.Lat != nil && s.Lng != nil
}
