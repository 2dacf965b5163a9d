// Package schedule manages the recurring weekly staffing plan.
//
// Shifts are keyed by weekday (0 = Monday) instead of calendar dates, so the
// plan repeats every week until it is edited.
package schedule

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/parse"
	"zeiterfassung-backend/internal/store"
)

// Service owns the shift plan.
type Service struct {
	store store.Store
	clock clock.Clock
	log   logrus.FieldLogger
}

// NewService creates a schedule service.
func NewService(s store.Store, c clock.Clock, log logrus.FieldLogger) *Service {
	return &Service{store: s, clock: c, log: log.WithField("component", "schedule")}
}

// Patch is a partial shift. Nil fields are left untouched.
type Patch struct {
	ID             *int64         `json:"id,omitempty"`
	EmployeeID     *int64         `json:"employee_id,omitempty"`
	SiteID         *int64         `json:"object_id,omitempty"`
	Weekday        *model.Weekday `json:"weekday,omitempty" binding:"omitempty,weekday"`
	StartTime      *string        `json:"start_time,omitempty" binding:"omitempty,hhmm"`
	EndTime        *string        `json:"end_time,omitempty" binding:"omitempty,hhmm"`
	PlannedHours   *float64       `json:"planned_hours,omitempty"`
	Status         *string        `json:"status,omitempty"`
	ReplacementFor *int64         `json:"replacement_for,omitempty"`
}

// apply copies the set fields of p onto sh.
func (p Patch) apply(sh *model.Shift) error {
	if p.EmployeeID != nil {
		sh.EmployeeID = *p.EmployeeID
	}
	if p.SiteID != nil {
		sh.SiteID = *p.SiteID
	}
	if p.Weekday != nil {
		if *p.Weekday < 0 || *p.Weekday > 6 {
			return apperr.Validation("weekday %d out of range 0..6", *p.Weekday)
		}
		sh.Weekday = int(*p.Weekday)
	}
	if p.StartTime != nil {
		t, err := clockValue(*p.StartTime)
		if err != nil {
			return err
		}
		sh.StartTime = t
	}
	if p.EndTime != nil {
		t, err := clockValue(*p.EndTime)
		if err != nil {
			return err
		}
		sh.EndTime = t
	}
	if p.PlannedHours != nil {
		sh.PlannedHours = *p.PlannedHours
	}
	if p.Status != nil {
		sh.Status = *p.Status
	}
	if p.ReplacementFor != nil {
		sh.ReplacementFor = p.ReplacementFor
	}
	return nil
}

// clockValue parses "HH:MM"; an empty string clears the boundary.
func clockValue(raw string) (*model.TimeOfDay, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := model.Clock(raw)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	return &t, nil
}

// PlannedHours derives the span between two boundaries, wrapping past midnight.
// A missing boundary yields zero.
func PlannedHours(start, end *model.TimeOfDay) float64 {
	if start == nil || end == nil {
		return 0
	}
	diff := int(*end) - int(*start)
	if diff < 0 {
		diff += parse.MinutesPerDay
	}
	return math.Round(float64(diff)/60*100) / 100
}

// Create inserts a new shift. Employee, site and weekday are required.
func (s *Service) Create(ctx context.Context, p Patch) (*model.Shift, error) {
	if p.EmployeeID == nil || p.SiteID == nil || p.Weekday == nil {
		return nil, apperr.Validation("employee_id, object_id and weekday are required")
	}
	sh := &model.Shift{Status: model.ShiftNormal}
	if err := p.apply(sh); err != nil {
		return nil, err
	}
	if p.PlannedHours == nil {
		sh.PlannedHours = PlannedHours(sh.StartTime, sh.EndTime)
	}

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := checkRefs(ctx, tx, sh); err != nil {
			return err
		}
		return tx.CreateShift(ctx, sh)
	})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// Update applies a patch to an existing shift.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (*model.Shift, error) {
	var sh *model.Shift
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		if sh, err = tx.GetShift(ctx, id); err != nil {
			return err
		}
		if err := p.apply(sh); err != nil {
			return err
		}
		if p.EmployeeID != nil || p.SiteID != nil {
			if err := checkRefs(ctx, tx, sh); err != nil {
				return err
			}
		}
		return tx.SaveShift(ctx, sh)
	})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// Delete removes a shift.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteShift(ctx, id)
}

// List returns the shifts matching f.
func (s *Service) List(ctx context.Context, f store.ShiftFilter) ([]model.Shift, error) {
	return s.store.ListShifts(ctx, f)
}

func checkRefs(ctx context.Context, tx store.Store, sh *model.Shift) error {
	if _, err := tx.GetEmployee(ctx, sh.EmployeeID); err != nil {
		return err
	}
	if _, err := tx.GetSite(ctx, sh.SiteID); err != nil {
		return err
	}
	return nil
}

// Bulk item outcomes.
const (
	BulkCreated  = "created"
	BulkUpdated  = "updated"
	BulkNotFound = "not_found"
	BulkInvalid  = "invalid"
)

// BulkResult reports the outcome of one patch of a batch.
type BulkResult struct {
	ID     int64  `json:"id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BulkUpdate applies every patch independently: a patch with an id updates that
// shift, one without creates a shift. Failures are reported per item and never
// abort the batch.
func (s *Service) BulkUpdate(ctx context.Context, patches []Patch) []BulkResult {
	results := make([]BulkResult, 0, len(patches))
	for i, p := range patches {
		var (
			sh     *model.Shift
			err    error
			status = BulkUpdated
		)
		if p.ID != nil {
			if _, err := s.store.GetShift(ctx, *p.ID); apperr.IsNotFound(err) {
				results = append(results, BulkResult{ID: *p.ID, Status: BulkNotFound})
				continue
			}
			sh, err = s.Update(ctx, *p.ID, p)
		} else {
			status = BulkCreated
			sh, err = s.Create(ctx, p)
		}

		res := BulkResult{Status: status}
		if p.ID != nil {
			res.ID = *p.ID
		}
		switch {
		case err == nil:
			res.ID = sh.ID
		default:
			res.Status = BulkInvalid
			res.Error = err.Error()
			s.log.WithError(err).WithField("item", i).Warn("bulk schedule item rejected")
		}
		results = append(results, res)
	}
	return results
}

type slotKey struct {
	employeeID, siteID int64
	weekday int
}

func keyOf(sh model.Shift) slotKey {
	return slotKey{employeeID: sh.EmployeeID, siteID: sh.SiteID, weekday: sh.Weekday}
}

// fillGaps returns a normal-status clone of every source shift whose
// (employee, site, weekday) slot is not held by any shift in existing. Each
// slot is filled at most once.
func fillGaps(source, existing []model.Shift) []model.Shift {
	taken := make(map[slotKey]bool, len(existing))
	for _, sh := range existing {
		taken[keyOf(sh)] = true
	}
	var out []model.Shift
	for _, sh := range source {
		k := keyOf(sh)
		if taken[k] {
			continue
		}
		taken[k] = true
		out = append(out, model.Shift{
			EmployeeID:   sh.EmployeeID,
			SiteID:       sh.SiteID,
			Weekday:      sh.Weekday,
			StartTime:    sh.StartTime,
			EndTime:      sh.EndTime,
			PlannedHours: sh.PlannedHours,
			Status:       model.ShiftNormal,
		})
	}
	return out
}

// CopyWeek fills gaps in the recurring template. The weeks are validated as ISO
// dates but do not select shifts, since shifts repeat by weekday. Source and
// target are both the stored template, so every source slot is already held by
// the shift itself and the plan is never duplicated. It returns the number of
// shifts created.
func (s *Service) CopyWeek(ctx context.Context, sourceWeek, targetWeek string) (int, error) {
	if _, err := parse.Date(sourceWeek); err != nil {
		return 0, apperr.Validation("source_week: %v", err)
	}
	if _, err := parse.Date(targetWeek); err != nil {
		return 0, apperr.Validation("target_week: %v", err)
	}

	copied := 0
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		shifts, err := tx.ListShifts(ctx, store.ShiftFilter{})
		if err != nil {
			return err
		}
		for _, clone := range fillGaps(shifts, shifts) {
			if err := tx.CreateShift(ctx, &clone); err != nil {
				return err
			}
			copied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"source_week": sourceWeek, "target_week": targetWeek, "copied": copied}).Info("week copied")
	return copied, nil
}

// CreateReplacement marks the original shift with reason (default vertretung)
// and clones it for the substitute. Both shifts persist.
func (s *Service) CreateReplacement(ctx context.Context, originalID, replacementEmployeeID int64, reason string) (*model.Shift, *model.Shift, error) {
	if reason == "" {
		reason = model.ShiftReplacement
	}
	var original, replacement *model.Shift
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		if original, err = tx.GetShift(ctx, originalID); err != nil {
			return err
		}
		if _, err := tx.GetEmployee(ctx, replacementEmployeeID); err != nil {
			return err
		}
		original.Status = reason
		if err := tx.SaveShift(ctx, original); err != nil {
			return err
		}
		absent := original.EmployeeID
		replacement = &model.Shift{
			EmployeeID:     replacementEmployeeID,
			SiteID:         original.SiteID,
			Weekday:        original.Weekday,
			StartTime:      original.StartTime,
			EndTime:        original.EndTime,
			PlannedHours:   original.PlannedHours,
			Status:         model.ShiftReplacement,
			ReplacementFor: &absent,
		}
		return tx.CreateShift(ctx, replacement)
	})
	if err != nil {
		return nil, nil, err
	}
	return original, replacement, nil
}

// QuickAssignInput assigns an employee to a site on one weekday. Empty times
// default to 06:00-14:00.
type QuickAssignInput struct {
	EmployeeID int64         `json:"employee_id" binding:"required"`
	SiteID     int64         `json:"object_id" binding:"required"`
	Weekday    model.Weekday `json:"weekday" binding:"weekday"`
	StartTime  string        `json:"start_time" binding:"omitempty,hhmm"`
	EndTime    string        `json:"end_time" binding:"omitempty,hhmm"`
}

// QuickAssign upserts the shift of the (employee, site, weekday) slot. It
// reports whether a new shift was created.
func (s *Service) QuickAssign(ctx context.Context, in QuickAssignInput) (*model.Shift, bool, error) {
	if in.StartTime == "" {
		in.StartTime = "06:00"
	}
	if in.EndTime == "" {
		in.EndTime = "14:00"
	}
	start, err := clockValue(in.StartTime)
	if err != nil {
		return nil, false, err
	}
	end, err := clockValue(in.EndTime)
	if err != nil {
		return nil, false, err
	}
	if in.Weekday < 0 || in.Weekday > 6 {
		return nil, false, apperr.Validation("weekday %d out of range 0..6", in.Weekday)
	}

	var (
		sh      *model.Shift
		created bool
	)
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		existing, err := tx.ListShifts(ctx, store.ShiftFilter{
			EmployeeID: in.EmployeeID,
			SiteID:     in.SiteID,
			Weekdays:   []int{int(in.Weekday)},
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			sh = &existing[0]
		} else {
			created = true
			sh = &model.Shift{
				EmployeeID: in.EmployeeID,
				SiteID:     in.SiteID,
				Weekday:    int(in.Weekday),
				Status:     model.ShiftNormal,
			}
			if err := checkRefs(ctx, tx, sh); err != nil {
				return err
			}
		}
		sh.StartTime, sh.EndTime = start, end
		sh.PlannedHours = PlannedHours(start, end)
		if created {
			return tx.CreateShift(ctx, sh)
		}
		return tx.SaveShift(ctx, sh)
	})
	if err != nil {
		return nil, false, err
	}
	return sh, created, nil
}

// Expected returns the shifts that owe work on day's weekday. A zero
// employeeID selects every employee.
func (s *Service) Expected(ctx context.Context, tx store.Store, day int, employeeID int64) ([]model.Shift, error) {
	if tx == nil {
		tx = s.store
	}
	shifts, err := tx.ListShifts(ctx, store.ShiftFilter{EmployeeID: employeeID, Weekdays: []int{day}})
	if err != nil {
		return nil, fmt.Errorf("failed to load shifts for weekday %d: %w", day, err)
	}
	active := shifts[:0]
	for _, sh := range shifts {
		if sh.Owes() {
			active = append(active, sh)
		}
	}
	return active, nil
}
