package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/model"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Transaction runs fn against a store bound to a single database transaction.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// byID loads one row by primary key into dest.
func (s *gormStore) byID(ctx context.Context, dest any, what string, id int64) error {
	err := s.db.WithContext(ctx).First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %d", what, id)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s %d: %w", what, id, err)
	}
	return nil
}

// take runs q and loads the first row into dest.
func take(q *gorm.DB, dest any, what string) error {
	err := q.Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s", what)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", what, err)
	}
	return nil
}

func wrap(err error, action string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	return nil
}

// ---- employees ----

func (s *gormStore) GetEmployee(ctx context.Context, id int64) (*model.Employee, error) {
	var e model.Employee
	if err := s.byID(ctx, &e, "employee", id); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *gormStore) GetEmployeeByUser(ctx context.Context, userID int64) (*model.Employee, error) {
	var e model.Employee
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if err := take(q, &e, fmt.Sprintf("employee for user %d", userID)); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *gormStore) ListEmployees(ctx context.Context, f EmployeeFilter) ([]model.Employee, error) {
	q := s.db.WithContext(ctx).Model(&model.Employee{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	var out []model.Employee
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return out, nil
}

func (s *gormStore) CreateEmployee(ctx context.Context, e *model.Employee) error {
	return wrap(s.db.WithContext(ctx).Create(e).Error, "create employee")
}

func (s *gormStore) SaveEmployee(ctx context.Context, e *model.Employee) error {
	return wrap(s.db.WithContext(ctx).Save(e).Error, fmt.Sprintf("save employee %d", e.ID))
}

// ---- customers and sites ----

func (s *gormStore) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	var c model.Customer
	if err := s.byID(ctx, &c, "customer", id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *gormStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	return wrap(s.db.WithContext(ctx).Create(c).Error, "create customer")
}

func (s *gormStore) GetSite(ctx context.Context, id int64) (*model.Site, error) {
	var site model.Site
	if err := s.byID(ctx, &site, "site", id); err != nil {
		return nil, err
	}
	return &site, nil
}

// ListSites loads the given sites; an empty id list loads every site.
func (s *gormStore) ListSites(ctx context.Context, ids []int64) ([]model.Site, error) {
	q := s.db.WithContext(ctx).Model(&model.Site{})
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	var out []model.Site
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return out, nil
}

func (s *gormStore) CreateSite(ctx context.Context, site *model.Site) error {
	return wrap(s.db.WithContext(ctx).Create(site).Error, "create site")
}

// ---- shifts ----

func (s *gormStore) GetShift(ctx context.Context, id int64) (*model.Shift, error) {
	var sh model.Shift
	if err := s.byID(ctx, &sh, "shift", id); err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *gormStore) ListShifts(ctx context.Context, f ShiftFilter) ([]model.Shift, error) {
	q := s.db.WithContext(ctx).Model(&model.Shift{})
	if f.EmployeeID != 0 {
		q = q.Where("employee_id = ?", f.EmployeeID)
	}
	if f.SiteID != 0 {
		q = q.Where("site_id = ?", f.SiteID)
	}
	if len(f.Weekdays) > 0 {
		q = q.Where("weekday IN ?", f.Weekdays)
	}
	var out []model.Shift
	if err := q.Order("weekday").Order("start_minute").Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return out, nil
}

func (s *gormStore) CreateShift(ctx context.Context, sh *model.Shift) error {
	return wrap(s.db.WithContext(ctx).Create(sh).Error, "create shift")
}

func (s *gormStore) SaveShift(ctx context.Context, sh *model.Shift) error {
	return wrap(s.db.WithContext(ctx).Save(sh).Error, fmt.Sprintf("save shift %d", sh.ID))
}

func (s *gormStore) DeleteShift(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.Shift{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete shift %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("shift %d", id)
	}
	return nil
}

// ---- time entries ----

func (s *gormStore) GetEntry(ctx context.Context, id int64) (*model.TimeEntry, error) {
	var e model.TimeEntry
	if err := s.byID(ctx, &e, "time entry", id); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *gormStore) ListEntries(ctx context.Context, f EntryFilter) ([]model.TimeEntry, error) {
	q := s.db.WithContext(ctx).Model(&model.TimeEntry{})
	if f.EmployeeID != 0 {
		q = q.Where("employee_id = ?", f.EmployeeID)
	}
	if f.SiteID != 0 {
		q = q.Where("site_id = ?", f.SiteID)
	}
	if f.From != nil {
		q = q.Where("check_in >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("check_in < ?", f.To.UTC())
	}
	switch {
	case f.OpenOnly:
		q = q.Where("check_out IS NULL")
	case f.ClosedOnly:
		q = q.Where("check_out IS NOT NULL")
	}
	var out []model.TimeEntry
	if err := q.Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	return out, nil
}

func (s *gormStore) CreateEntry(ctx context.Context, e *model.TimeEntry) error {
	normalizeEntry(e)
	return wrap(s.db.WithContext(ctx).Create(e).Error, "create time entry")
}

func (s *gormStore) SaveEntry(ctx context.Context, e *model.TimeEntry) error {
	normalizeEntry(e)
	return wrap(s.db.WithContext(ctx).Save(e).Error, fmt.Sprintf("save time entry %d", e.ID))
}

func (s *gormStore) DeleteEntry(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.TimeEntry{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete time entry %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("time entry %d", id)
	}
	return nil
}

// normalizeEntry stores timestamps in UTC.
func normalizeEntry(e *model.TimeEntry) {
	e.CheckIn = e.CheckIn.UTC()
	if e.CheckOut != nil {
		out := e.CheckOut.UTC()
		e.CheckOut = &out
	}
}

// ---- breaks ----

func (s *gormStore) GetBreak(ctx context.Context, id int64) (*model.BreakEntry, error) {
	var b model.BreakEntry
	if err := s.byID(ctx, &b, "break", id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *gormStore) OpenBreak(ctx context.Context, entryID int64) (*model.BreakEntry, error) {
	var b model.BreakEntry
	q := s.db.WithContext(ctx).
		Where("time_entry_id = ? AND end_time IS NULL", entryID).
		Order("id DESC")
	if err := take(q, &b, fmt.Sprintf("open break for entry %d", entryID)); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *gormStore) ListBreaks(ctx context.Context, entryIDs []int64) ([]model.BreakEntry, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	var out []model.BreakEntry
	err := s.db.WithContext(ctx).Where("time_entry_id IN ?", entryIDs).Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list breaks: %w", err)
	}
	return out, nil
}

func (s *gormStore) CreateBreak(ctx context.Context, b *model.BreakEntry) error {
	b.Start = b.Start.UTC()
	return wrap(s.db.WithContext(ctx).Create(b).Error, "create break")
}

func (s *gormStore) SaveBreak(ctx context.Context, b *model.BreakEntry) error {
	if b.End != nil {
		end := b.End.UTC()
		b.End = &end
	}
	return wrap(s.db.WithContext(ctx).Save(b).Error, fmt.Sprintf("save break %d", b.ID))
}

func (s *gormStore) DeleteBreaks(ctx context.Context, entryID int64) error {
	err := s.db.WithContext(ctx).Where("time_entry_id = ?", entryID).Delete(&model.BreakEntry{}).Error
	return wrap(err, fmt.Sprintf("delete breaks of entry %d", entryID))
}

// ---- corrections ----

func (s *gormStore) GetCorrection(ctx context.Context, id int64) (*model.CorrectionRequest, error) {
	var c model.CorrectionRequest
	if err := s.byID(ctx, &c, "correction", id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *gormStore) PendingCorrection(ctx context.Context, entryID int64) (*model.CorrectionRequest, error) {
	var c model.CorrectionRequest
	q := s.db.WithContext(ctx).Where("time_entry_id = ? AND status = ?", entryID, model.CorrectionPending)
	if err := take(q, &c, fmt.Sprintf("pending correction for entry %d", entryID)); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *gormStore) correctionQuery(ctx context.Context, f CorrectionFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&model.CorrectionRequest{})
	if f.EmployeeID != 0 {
		q = q.Where("employee_id = ?", f.EmployeeID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (s *gormStore) ListCorrections(ctx context.Context, f CorrectionFilter) ([]model.CorrectionRequest, error) {
	var out []model.CorrectionRequest
	if err := s.correctionQuery(ctx, f).Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	return out, nil
}

func (s *gormStore) CountCorrections(ctx context.Context, f CorrectionFilter) (int64, error) {
	var n int64
	if err := s.correctionQuery(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count corrections: %w", err)
	}
	return n, nil
}

func (s *gormStore) CreateCorrection(ctx context.Context, c *model.CorrectionRequest) error {
	return wrap(s.db.WithContext(ctx).Create(c).Error, "create correction")
}

func (s *gormStore) SaveCorrection(ctx context.Context, c *model.CorrectionRequest) error {
	return wrap(s.db.WithContext(ctx).Save(c).Error, fmt.Sprintf("save correction %d", c.ID))
}

// ---- warnings ----

func (s *gormStore) GetWarning(ctx context.Context, id int64) (*model.Warning, error) {
	var w model.Warning
	if err := s.byID(ctx, &w, "warning", id); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *gormStore) warningQuery(ctx context.Context, f WarningFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&model.Warning{})
	if f.EmployeeID != 0 {
		q = q.Where("employee_id = ?", f.EmployeeID)
	}
	if f.Type != "" {
		q = q.Where("warning_type = ?", f.Type)
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}
	if f.UnresolvedOnly {
		q = q.Where("is_resolved = ?", false)
	}
	return q
}

// FindWarning returns the newest warning matching f.
func (s *gormStore) FindWarning(ctx context.Context, f WarningFilter) (*model.Warning, error) {
	var w model.Warning
	q := s.warningQuery(ctx, f).Order("id DESC")
	if err := take(q, &w, "warning"); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *gormStore) ListWarnings(ctx context.Context, f WarningFilter) ([]model.Warning, error) {
	q := s.warningQuery(ctx, f).Order("created_at DESC").Order("id DESC")
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []model.Warning
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list warnings: %w", err)
	}
	return out, nil
}

func (s *gormStore) CreateWarning(ctx context.Context, w *model.Warning) error {
	return wrap(s.db.WithContext(ctx).Create(w).Error, "create warning")
}

func (s *gormStore) SaveWarning(ctx context.Context, w *model.Warning) error {
	return wrap(s.db.WithContext(ctx).Save(w).Error, fmt.Sprintf("save warning %d", w.ID))
}

// ---- hours rules ----

func (s *gormStore) GetCustomerHours(ctx context.Context, customerID int64) (*model.CustomerHours, error) {
	var h model.CustomerHours
	q := s.db.WithContext(ctx).Where("customer_id = ?", customerID)
	if err := take(q, &h, fmt.Sprintf("hours default for customer %d", customerID)); err != nil {
		return nil, err
	}
	return &h, nil
}

// SaveCustomerHours inserts or replaces the default of h.CustomerID.
func (s *gormStore) SaveCustomerHours(ctx context.Context, h *model.CustomerHours) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"default_hours", "cleaning_type"}),
	}).Create(h).Error
	return wrap(err, fmt.Sprintf("save hours default for customer %d", h.CustomerID))
}

func (s *gormStore) GetSpecialRule(ctx context.Context, id int64) (*model.SpecialRule, error) {
	var r model.SpecialRule
	if err := s.byID(ctx, &r, "special rule", id); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *gormStore) FindSpecialRule(ctx context.Context, employeeID, customerID int64, activeOnly bool) (*model.SpecialRule, error) {
	q := s.db.WithContext(ctx).Where("employee_id = ? AND customer_id = ?", employeeID, customerID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var r model.SpecialRule
	what := fmt.Sprintf("special rule for employee %d at customer %d", employeeID, customerID)
	if err := take(q.Order("id DESC"), &r, what); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *gormStore) ListSpecialRules(ctx context.Context, activeOnly bool) ([]model.SpecialRule, error) {
	q := s.db.WithContext(ctx).Model(&model.SpecialRule{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []model.SpecialRule
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list special rules: %w", err)
	}
	return out, nil
}

func (s *gormStore) SaveSpecialRule(ctx context.Context, r *model.SpecialRule) error {
	return wrap(s.db.WithContext(ctx).Save(r).Error, "save special rule")
}

// ---- push subscriptions ----

// SaveSubscription creates or refreshes a push subscription keyed by endpoint.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_id"}),
	}).Create(sub).Error
	return wrap(err, "save push subscription")
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error
	return wrap(err, "delete push subscription")
}

func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	return out, nil
}
