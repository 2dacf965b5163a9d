// Package attendance records check-ins, check-outs, site switches, breaks
// and one-tap bookings. Every write path keeps at most one open time entry per
// employee.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/config"
	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/rates"
	"zeiterfassung-backend/internal/store"
)

// ErrNoActiveEntry is returned when an operation needs an open time entry and there is none.
var ErrNoActiveEntry = fmt.Errorf("%w: no active time entry", apperr.ErrInvalidState)

// Recorder handles interactive attendance. Callers are addressed by user id.
type Recorder struct {
	store store.Store
	clock clock.Clock
	cfg   config.AttendanceConfig
	log   logrus.FieldLogger
}

// NewRecorder creates a recorder.
func NewRecorder(s store.Store, c clock.Clock, cfg config.AttendanceConfig, log logrus.FieldLogger) *Recorder {
	return &Recorder{store: s, clock: c, cfg: cfg, log: log.WithField("component", "attendance")}
}

// CloseOpen checks out every open entry of the employee at `at` and ends their
// running breaks. Entries that started after `at` are closed at their check-in.
func CloseOpen(ctx context.Context, tx store.Store, employeeID int64, at time.Time) ([]model.TimeEntry, error) {
	open, err := tx.ListEntries(ctx, store.EntryFilter{EmployeeID: employeeID, OpenOnly: true})
	if err != nil {
		return nil, err
	}
	for i := range open {
		if err := CloseEntry(ctx, tx, &open[i], at); err != nil {
			return nil, err
		}
	}
	return open, nil
}

// CloseEntry checks out e at `at` (never before its check-in) and ends its running break.
func CloseEntry(ctx context.Context, tx store.Store, e *model.TimeEntry, at time.Time) error {
	if at.Before(e.CheckIn) {
		at = e.CheckIn
	}
	e.CheckOut = &at
	if err := tx.SaveEntry(ctx, e); err != nil {
		return err
	}
	b, err := tx.OpenBreak(ctx, e.ID)
	switch {
	case apperr.IsNotFound(err):
		return nil
	case err != nil:
		return err
	}
	b.End = &at
	return tx.SaveBreak(ctx, b)
}

// employee loads the profile linked to userID. With create set, a missing
// profile is replaced by a stub category C employee.
func (r *Recorder) employee(ctx context.Context, tx store.Store, userID int64, create bool) (*model.Employee, error) {
	emp, err := tx.GetEmployeeByUser(ctx, userID)
	if err == nil || !create || !apperr.IsNotFound(err) {
		return emp, err
	}
	uid := userID
	emp = &model.Employee{
		UserID:      &uid,
		PersonalNr:  fmt.Sprintf(r.cfg.StubPersonalNrFormat, userID),
		FirstName:   "User",
		LastName:    strconv.FormatInt(userID, 10),
		Category:    model.CategoryC,
		HourlyRate:  r.cfg.DefaultRate,
		GPSRequired: true,
		Active:      true,
	}
	if err := tx.CreateEmployee(ctx, emp); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"user_id": userID, "employee_id": emp.ID}).Info("created stub employee")
	return emp, nil
}

// current returns the newest open entry of the user's employee or ErrNoActiveEntry.
func (r *Recorder) current(ctx context.Context, tx store.Store, userID int64) (*model.Employee, *model.TimeEntry, error) {
	emp, err := tx.GetEmployeeByUser(ctx, userID)
	if apperr.IsNotFound(err) {
		return nil, nil, ErrNoActiveEntry
	}
	if err != nil {
		return nil, nil, err
	}
	open, err := tx.ListEntries(ctx, store.EntryFilter{EmployeeID: emp.ID, OpenOnly: true})
	if err != nil {
		return nil, nil, err
	}
	if len(open) == 0 {
		return emp, nil, ErrNoActiveEntry
	}
	return emp, &open[0], nil
}

// checkGeofence rejects category C stamps at a site outside its radius.
func checkGeofence(emp *model.Employee, site *model.Site, gps *GPS) error {
	if emp.EffectiveCategory() != model.CategoryC || !emp.GPSRequired || !site.HasCoordinates() {
		return nil
	}
	if gps == nil {
		return apperr.Validation("GPS position required at %s", site.Name)
	}
	d := DistanceM(*gps, GPS{Lat: *site.Lat, Lng: *site.Lng})
	if d > float64(site.RadiusM) {
		return apperr.Validation("position is %.0fm from %s, allowed radius %dm", d, site.Name, site.RadiusM)
	}
	return nil
}

// CheckIn opens a new entry at the site after force-closing any open entry.
func (r *Recorder) CheckIn(ctx context.Context, userID, siteID int64, gps *GPS) (*model.TimeEntry, error) {
	if err := validateOptional(gps); err != nil {
		return nil, err
	}
	now := r.clock.Now()
	var entry *model.TimeEntry
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		emp, err := r.employee(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		site, err := tx.GetSite(ctx, siteID)
		if err != nil {
			return err
		}
		if err := checkGeofence(emp, site, gps); err != nil {
			return err
		}
		closed, err := CloseOpen(ctx, tx, emp.ID, now)
		if err != nil {
			return err
		}
		if len(closed) > 0 {
			r.log.WithFields(logrus.Fields{"employee_id": emp.ID, "count": len(closed)}).Info("force-closed open entries on check-in")
		}
		entry = &model.TimeEntry{
			EmployeeID:  emp.ID,
			SiteID:      site.ID,
			CheckIn:     now,
			ServiceType: model.DefaultServiceType,
			HourlyRate:  rates.RateFor(*emp, site.Name),
		}
		entry.Lat, entry.Lng = coords(gps)
		return tx.CreateEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CheckOut closes the newest open entry and its running break.
func (r *Recorder) CheckOut(ctx context.Context, userID int64, gps *GPS) (*model.TimeEntry, error) {
	if err := validateOptional(gps); err != nil {
		return nil, err
	}
	now := r.clock.Now()
	var entry *model.TimeEntry
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		_, e, err := r.current(ctx, tx, userID)
		if err != nil {
			return err
		}
		e.CheckOutLat, e.CheckOutLng = coords(gps)
		if err := CloseEntry(ctx, tx, e, now); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SwitchSite closes the current entry and opens one at siteID in one transaction.
func (r *Recorder) SwitchSite(ctx context.Context, userID, siteID int64, gps *GPS) (closed, opened *model.TimeEntry, err error) {
	if err := validateOptional(gps); err != nil {
		return nil, nil, err
	}
	now := r.clock.Now()
	err = r.store.Transaction(ctx, func(tx store.Store) error {
		emp, cur, err := r.current(ctx, tx, userID)
		if err != nil {
			return err
		}
		site, err := tx.GetSite(ctx, siteID)
		if err != nil {
			return err
		}
		if err := checkGeofence(emp, site, gps); err != nil {
			return err
		}
		cur.CheckOutLat, cur.CheckOutLng = coords(gps)
		cur.Notes += fmt.Sprintf(" | Wechsel zu Objekt %d", site.ID)
		if err := CloseEntry(ctx, tx, cur, now); err != nil {
			return err
		}
		// older stragglers, if any
		if _, err := CloseOpen(ctx, tx, emp.ID, now); err != nil {
			return err
		}
		next := &model.TimeEntry{
			EmployeeID:  emp.ID,
			SiteID:      site.ID,
			CheckIn:     now,
			Notes:       fmt.Sprintf("Wechsel von Objekt %d", cur.SiteID),
			ServiceType: model.DefaultServiceType,
			HourlyRate:  rates.RateFor(*emp, site.Name),
		}
		next.Lat, next.Lng = coords(gps)
		if err := tx.CreateEntry(ctx, next); err != nil {
			return err
		}
		closed, opened = cur, next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return closed, opened, nil
}

// Status is the working state of a user.
type Status struct {
	Working    bool              `json:"is_working"`
	Entry      *model.TimeEntry  `json:"entry,omitempty"`
	Break      *model.BreakEntry `json:"active_break,omitempty"`
	AutoClosed bool              `json:"auto_closed,omitempty"`
}

// CurrentStatus reports the newest open entry. An entry open for longer than
// the zombie threshold is closed at now and reported as not working.
func (r *Recorder) CurrentStatus(ctx context.Context, userID int64) (*Status, error) {
	now := r.clock.Now()
	status := &Status{}
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		_, e, err := r.current(ctx, tx, userID)
		if errors.Is(err, ErrNoActiveEntry) {
			return nil
		}
		if err != nil {
			return err
		}
		if now.Sub(e.CheckIn) > r.cfg.ZombieAfter {
			if err := CloseEntry(ctx, tx, e, now); err != nil {
				return err
			}
			r.log.WithFields(logrus.Fields{"entry_id": e.ID, "employee_id": e.EmployeeID}).Warn("closed zombie entry")
			status.AutoClosed = true
			return nil
		}
		status.Working = true
		status.Entry = e
		b, err := tx.OpenBreak(ctx, e.ID)
		switch {
		case err == nil:
			status.Break = b
		case !apperr.IsNotFound(err):
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// History lists the user's entries with check-in in [from, to), newest first.
func (r *Recorder) History(ctx context.Context, userID int64, from, to *time.Time) ([]model.TimeEntry, error) {
	emp, err := r.store.GetEmployeeByUser(ctx, userID)
	if apperr.IsNotFound(err) {
		return []model.TimeEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return r.store.ListEntries(ctx, store.EntryFilter{EmployeeID: emp.ID, From: from, To: to})
}
