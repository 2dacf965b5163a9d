package store

import "time"

// EmployeeFilter narrows ListEmployees.
type EmployeeFilter struct {
	Category   string
	ActiveOnly bool
}

// ShiftFilter narrows ListShifts. Zero values match everything.
type ShiftFilter struct {
	EmployeeID int64
	SiteID     int64
	Weekdays   []int
}

// EntryFilter narrows ListEntries. From/To bound the check-in timestamp as [From, To).
type EntryFilter struct {
	EmployeeID int64
	SiteID     int64
	From       *time.Time
	To         *time.Time
	OpenOnly   bool
	ClosedOnly bool
}

// CorrectionFilter narrows ListCorrections.
type CorrectionFilter struct {
	EmployeeID int64
	Status     string
}

// WarningFilter narrows ListWarnings and FindWarning.
type WarningFilter struct {
	EmployeeID     int64
	Type           string
	Since          *time.Time
	UnresolvedOnly bool
	Offset         int
	Limit          int
}
