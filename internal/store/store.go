package store

import (
	"context"

	"zeiterfassung-backend/internal/model"
)

// Store defines the interface for all database operations the core needs.
// Lookups of a single record return an apperr.ErrNotFound when it is absent.
type Store interface {
	// Transaction runs fn in one unit of work. fn must use the Store it is given.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error

	GetEmployee(ctx context.Context, id int64) (*model.Employee, error)
	GetEmployeeByUser(ctx context.Context, userID int64) (*model.Employee, error)
	ListEmployees(ctx context.Context, f EmployeeFilter) ([]model.Employee, error)
	CreateEmployee(ctx context.Context, e *model.Employee) error
	SaveEmployee(ctx context.Context, e *model.Employee) error

	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	CreateCustomer(ctx context.Context, c *model.Customer) error
	GetSite(ctx context.Context, id int64) (*model.Site, error)
	ListSites(ctx context.Context, ids []int64) ([]model.Site, error)
	CreateSite(ctx context.Context, s *model.Site) error

	GetShift(ctx context.Context, id int64) (*model.Shift, error)
	ListShifts(ctx context.Context, f ShiftFilter) ([]model.Shift, error)
	CreateShift(ctx context.Context, s *model.Shift) error
	SaveShift(ctx context.Context, s *model.Shift) error
	DeleteShift(ctx context.Context, id int64) error

	GetEntry(ctx context.Context, id int64) (*model.TimeEntry, error)
	// ListEntries returns matching entries, most recently created first.
	ListEntries(ctx context.Context, f EntryFilter) ([]model.TimeEntry, error)
	CreateEntry(ctx context.Context, e *model.TimeEntry) error
	SaveEntry(ctx context.Context, e *model.TimeEntry) error
	DeleteEntry(ctx context.Context, id int64) error

	GetBreak(ctx context.Context, id int64) (*model.BreakEntry, error)
	OpenBreak(ctx context.Context, entryID int64) (*model.BreakEntry, error)
	ListBreaks(ctx context.Context, entryIDs []int64) ([]model.BreakEntry, error)
	CreateBreak(ctx context.Context, b *model.BreakEntry) error
	SaveBreak(ctx context.Context, b *model.BreakEntry) error
	DeleteBreaks(ctx context.Context, entryID int64) error

	GetCorrection(ctx context.Context, id int64) (*model.CorrectionRequest, error)
	PendingCorrection(ctx context.Context, entryID int64) (*model.CorrectionRequest, error)
	ListCorrections(ctx context.Context, f CorrectionFilter) ([]model.CorrectionRequest, error)
	CountCorrections(ctx context.Context, f CorrectionFilter) (int64, error)
	CreateCorrection(ctx context.Context, c *model.CorrectionRequest) error
	SaveCorrection(ctx context.Context, c *model.CorrectionRequest) error

	GetWarning(ctx context.Context, id int64) (*model.Warning, error)
	FindWarning(ctx context.Context, f WarningFilter) (*model.Warning, error)
	ListWarnings(ctx context.Context, f WarningFilter) ([]model.Warning, error)
	CreateWarning(ctx context.Context, w *model.Warning) error
	SaveWarning(ctx context.Context, w *model.Warning) error

	GetCustomerHours(ctx context.Context, customerID int64) (*model.CustomerHours, error)
	SaveCustomerHours(ctx context.Context, h *model.CustomerHours) error
	GetSpecialRule(ctx context.Context, id int64) (*model.SpecialRule, error)
	FindSpecialRule(ctx context.Context, employeeID, customerID int64, activeOnly bool) (*model.SpecialRule, error)
	ListSpecialRules(ctx context.Context, activeOnly bool) ([]model.SpecialRule, error)
	SaveSpecialRule(ctx context.Context, r *model.SpecialRule) error

	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}
