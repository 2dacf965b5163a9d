// Package reconcile compares the shift plan with recorded attendance. It
// stamps category A employees automatically, closes forgotten entries and
// raises warnings for no-shows, excessive hours and wrong sites.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/config"
	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/attendance"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/parse"
	"zeiterfassung-backend/internal/rates"
	"zeiterfassung-backend/internal/schedule"
	"zeiterfassung-backend/internal/store"
)

// AutoCheckoutMarker is appended to the notes of entries closed by CloseForgotten.
const AutoCheckoutMarker = "[AUTO-CHECKOUT: Vergessen auszustempeln]"

// Notifier delivers raised warnings to the office.
type Notifier interface {
	Notify(ctx context.Context, employeeName, warningType, message string) error
}

// Engine runs the reconciliation sweeps.
type Engine struct {
	store    store.Store
	plan     *schedule.Service
	clock    clock.Clock
	cfg      config.ReconcileConfig
	jitter   *Jitter
	notifier Notifier
	log      logrus.FieldLogger
}

// NewEngine creates an engine. notifier may be nil.
func NewEngine(s store.Store, plan *schedule.Service, c clock.Clock, cfg config.ReconcileConfig, j *Jitter, n Notifier, log logrus.FieldLogger) *Engine {
	if j == nil {
		j = NewJitter(cfg.Seed, minutes(cfg.JitterMinMinutes), minutes(cfg.JitterMaxMinutes))
	}
	return &Engine{
		store:    s,
		plan:     plan,
		clock:    c,
		cfg:      cfg,
		jitter:   j,
		notifier: n,
		log:      log.WithField("component", "reconcile"),
	}
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// pending collects warnings created inside a transaction; they are sent after commit.
type pending struct {
	warnings []model.Warning
	names    []string
}

func (e *Engine) raise(ctx context.Context, tx store.Store, p *pending, emp *model.Employee, kind, msg string, now time.Time) error {
	w := model.Warning{EmployeeID: emp.ID, Type: kind, Message: msg, CreatedAt: now.UTC()}
	if err := tx.CreateWarning(ctx, &w); err != nil {
		return err
	}
	p.warnings = append(p.warnings, w)
	p.names = append(p.names, emp.FullName())
	return nil
}

func (e *Engine) flush(ctx context.Context, p *pending) {
	for i, w := range p.warnings {
		e.log.WithFields(logrus.Fields{"employee_id": w.EmployeeID, "warning_type": w.Type}).Warn(w.Message)
		if e.notifier == nil {
			continue
		}
		if err := e.notifier.Notify(ctx, p.names[i], w.Type, w.Message); err != nil {
			e.log.WithError(err).WithField("warning_id", w.ID).Error("failed to forward warning")
		}
	}
}

func dayRange(now time.Time) (from, to time.Time) {
	from = clock.StartOfDay(now)
	return from, from.AddDate(0, 0, 1)
}

// TickResult counts the automatic stamps of one tick.
type TickResult struct {
	CheckedIn  int `json:"checked_in"`
	CheckedOut int `json:"checked_out"`
	Failed     int `json:"failed"`
}

// Tick stamps every active category A employee whose shifts are inside a
// start or end window at now. Each employee is handled in its own
// transaction; failures are logged and skipped.
func (e *Engine) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	var res TickResult
	emps, err := e.store.ListEmployees(ctx, store.EmployeeFilter{Category: string(model.CategoryA), ActiveOnly: true})
	if err != nil {
		return res, err
	}
	for _, emp := range emps {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		in, out, err := e.tickEmployee(ctx, emp, now)
		if err != nil {
			res.Failed++
			e.log.WithError(err).WithField("employee_id", emp.ID).Error("auto stamping failed")
			continue
		}
		res.CheckedIn += in
		res.CheckedOut += out
	}
	return res, nil
}

func (e *Engine) tickEmployee(ctx context.Context, emp model.Employee, now time.Time) (in, out int, err error) {
	window := time.Duration(e.cfg.WindowMinutes) * time.Minute
	from, to := dayRange(now)
	err = e.store.Transaction(ctx, func(tx store.Store) error {
		in, out = 0, 0
		shifts, err := e.plan.Expected(ctx, tx, parse.WeekdayOf(now), emp.ID)
		if err != nil {
			return err
		}
		if len(shifts) == 0 {
			return nil
		}
		entries, err := tx.ListEntries(ctx, store.EntryFilter{EmployeeID: emp.ID, From: &from, To: &to})
		if err != nil {
			return err
		}
		for _, sh := range shifts {
			switch ShiftState(sh, entries, now, window) {
			case StateStartWindow:
				entry, err := e.autoCheckIn(ctx, tx, emp, sh, now)
				if err != nil {
					return err
				}
				// the check-in force-closed every other entry
				for i := range entries {
					if entries[i].Open() {
						c := entry.CheckIn
						entries[i].CheckOut = &c
					}
				}
				entries = append(entries, *entry)
				in++
			case StateEndWindow:
				for i := range entries {
					if entries[i].SiteID != sh.SiteID || !entries[i].Open() {
						continue
					}
					if err := e.autoCheckOut(ctx, tx, &entries[i], now); err != nil {
						return err
					}
					out++
				}
			}
		}
		return nil
	})
	return in, out, err
}

func (e *Engine) autoCheckIn(ctx context.Context, tx store.Store, emp model.Employee, sh model.Shift, now time.Time) (*model.TimeEntry, error) {
	start, _, _ := Bounds(sh, now)
	at := now.Add(e.jitter.Offset())
	if floor := start.Add(-e.jitter.Max()); at.Before(floor) {
		at = floor
	}
	if _, err := attendance.CloseOpen(ctx, tx, emp.ID, at); err != nil {
		return nil, err
	}
	site, err := tx.GetSite(ctx, sh.SiteID)
	if err != nil {
		return nil, err
	}
	entry := &model.TimeEntry{
		EmployeeID:  emp.ID,
		SiteID:      sh.SiteID,
		CheckIn:     at,
		Notes:       fmt.Sprintf("Auto-Stempel (Soll: %.1fh)", sh.PlannedHours),
		ServiceType: model.DefaultServiceType,
		HourlyRate:  rates.RateFor(emp, site.Name),
	}
	if err := tx.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"employee_id": emp.ID, "object_id": sh.SiteID, "check_in": at.Format(time.RFC3339)}).Info("auto check-in")
	return entry, nil
}

func (e *Engine) autoCheckOut(ctx context.Context, tx store.Store, entry *model.TimeEntry, now time.Time) error {
	at := now.Add(e.jitter.Offset())
	if !at.After(entry.CheckIn) {
		at = entry.CheckIn.Add(time.Duration(e.cfg.MinSpanMinutes) * time.Minute)
	}
	if err := attendance.CloseEntry(ctx, tx, entry, at); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"employee_id": entry.EmployeeID, "entry_id": entry.ID, "check_out": at.Format(time.RFC3339)}).Info("auto check-out")
	return nil
}

// AuditNoShows raises a no_show warning for every owed shift today without an
// entry for its employee and site. An unresolved no_show since midnight
// suppresses further ones for the employee.
func (e *Engine) AuditNoShows(ctx context.Context, now time.Time) (int, error) {
	from, to := dayRange(now)
	shifts, err := e.store.ListShifts(ctx, store.ShiftFilter{Weekdays: []int{parse.WeekdayOf(now)}})
	if err != nil {
		return 0, err
	}
	created := 0
	for _, sh := range shifts {
		if !sh.Owes() {
			continue
		}
		var p pending
		err := e.store.Transaction(ctx, func(tx store.Store) error {
			emp, err := tx.GetEmployee(ctx, sh.EmployeeID)
			if err != nil || !emp.Active {
				return err
			}
			entries, err := tx.ListEntries(ctx, store.EntryFilter{EmployeeID: emp.ID, SiteID: sh.SiteID, From: &from, To: &to})
			if err != nil || len(entries) > 0 {
				return err
			}
			_, err = tx.FindWarning(ctx, store.WarningFilter{EmployeeID: emp.ID, Type: model.WarningNoShow, Since: &from, UnresolvedOnly: true})
			switch {
			case err == nil:
				return nil
			case !apperr.IsNotFound(err):
				return err
			}
			site := fmt.Sprintf("Objekt %d", sh.SiteID)
			if s, err := tx.GetSite(ctx, sh.SiteID); err == nil {
				site = s.Name
			}
			msg := fmt.Sprintf("Mitarbeiter nicht erschienen bei %s (Sollte um %s beginnen)", site, fmtBoundary(sh.StartTime))
			return e.raise(ctx, tx, &p, emp, model.WarningNoShow, msg, now)
		})
		if err != nil {
			e.log.WithError(err).WithField("shift_id", sh.ID).Error("no-show audit failed")
			continue
		}
		created += len(p.warnings)
		e.flush(ctx, &p)
	}
	return created, nil
}

func fmtBoundary(t *model.TimeOfDay) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

// CloseForgotten closes every open entry checked in today at the earliest of
// the default checkout, the maximum open span and now, and raises a
// forgotten_checkout warning for each.
func (e *Engine) CloseForgotten(ctx context.Context, now time.Time) (int, error) {
	from, to := dayRange(now)
	open, err := e.store.ListEntries(ctx, store.EntryFilter{From: &from, To: &to, OpenOnly: true})
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, entry := range open {
		var p pending
		err := e.store.Transaction(ctx, func(tx store.Store) error {
			emp, err := tx.GetEmployee(ctx, entry.EmployeeID)
			if err != nil {
				return err
			}
			in := entry.CheckIn.In(now.Location())
			at := e.forgottenCheckout(in, now)
			entry.AppendNote(AutoCheckoutMarker)
			if err := attendance.CloseEntry(ctx, tx, &entry, at); err != nil {
				return err
			}
			msg := fmt.Sprintf("Vergessen auszustempeln am %s. Eingestempelt um %s, automatisch ausgestempelt um %s Uhr.",
				in.Format("02.01.2006"), in.Format("15:04"), at.In(now.Location()).Format("15:04"))
			return e.raise(ctx, tx, &p, emp, model.WarningForgottenCheckout, msg, now)
		})
		if err != nil {
			e.log.WithError(err).WithField("entry_id", entry.ID).Error("auto checkout failed")
			continue
		}
		closed++
		e.flush(ctx, &p)
	}
	return closed, nil
}

// forgottenCheckout is min(default checkout, in + max open span, now). The
// default checkout is the configured hour on the check-in day, or in plus the
// fallback span when that hour precedes the check-in.
func (e *Engine) forgottenCheckout(in, now time.Time) time.Time {
	def := clock.At(in, e.cfg.DefaultCheckoutHour*60)
	if def.Before(in) {
		def = in.Add(hours(e.cfg.FallbackCheckoutHours))
	}
	at := def
	if limit := in.Add(hours(e.cfg.MaxOpenHours)); limit.Before(at) {
		at = limit
	}
	if now.Before(at) {
		at = now
	}
	return at
}

// CheckExcessiveHours warns about entries open longer than the excessive
// threshold, at most once per employee within the cooldown.
func (e *Engine) CheckExcessiveHours(ctx context.Context, now time.Time) (int, error) {
	open, err := e.store.ListEntries(ctx, store.EntryFilter{OpenOnly: true})
	if err != nil {
		return 0, err
	}
	limit := hours(e.cfg.ExcessiveHours)
	cooldown := time.Duration(e.cfg.ExcessiveCooldownMins) * time.Minute
	created := 0
	for _, entry := range open {
		worked := now.Sub(entry.CheckIn)
		if worked <= limit {
			continue
		}
		var p pending
		err := e.store.Transaction(ctx, func(tx store.Store) error {
			since := now.Add(-cooldown)
			_, err := tx.FindWarning(ctx, store.WarningFilter{EmployeeID: entry.EmployeeID, Type: model.WarningExcessiveHours, Since: &since})
			switch {
			case err == nil:
				return nil
			case !apperr.IsNotFound(err):
				return err
			}
			emp, err := tx.GetEmployee(ctx, entry.EmployeeID)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Arbeitet seit über %.1f Stunden ohne Ausstempelung!", worked.Hours())
			return e.raise(ctx, tx, &p, emp, model.WarningExcessiveHours, msg, now)
		})
		if err != nil {
			e.log.WithError(err).WithField("entry_id", entry.ID).Error("excessive hours check failed")
			continue
		}
		created += len(p.warnings)
		e.flush(ctx, &p)
	}
	return created, nil
}

// CheckScheduleCompliance reports whether a check-in at siteID matches the
// employee's plan for today. A mismatch raises a WRONG_OBJECT warning.
// Employees without a shift today are always compliant.
func (e *Engine) CheckScheduleCompliance(ctx context.Context, employeeID, siteID int64) (bool, error) {
	now := e.clock.Now()
	var p pending
	ok := true
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		shifts, err := e.plan.Expected(ctx, tx, parse.WeekdayOf(now), employeeID)
		if err != nil || len(shifts) == 0 {
			return err
		}
		for _, sh := range shifts {
			if sh.SiteID == siteID {
				return nil
			}
		}
		emp, err := tx.GetEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		ok = false
		msg := fmt.Sprintf("Mitarbeiter ist nicht am geplanten Objekt (Ist: Objekt %d, Soll: Objekt %d)", siteID, shifts[0].SiteID)
		return e.raise(ctx, tx, &p, emp, model.WarningWrongSite, msg, now)
	})
	if err != nil {
		return false, err
	}
	e.flush(ctx, &p)
	return ok, nil
}

// RunAllResult counts the findings of RunAll.
type RunAllResult struct {
	MissingCheckouts int `json:"missing_checkouts"`
	NoShows          int `json:"no_shows"`
}

// RunAll closes forgotten entries and audits no-shows on demand.
func (e *Engine) RunAll(ctx context.Context, now time.Time) (*RunAllResult, error) {
	closed, err := e.CloseForgotten(ctx, now)
	if err != nil {
		return nil, err
	}
	noShows, err := e.AuditNoShows(ctx, now)
	if err != nil {
		return nil, err
	}
	return &RunAllResult{MissingCheckouts: closed, NoShows: noShows}, nil
}
