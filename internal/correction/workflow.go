// Package correction implements the request/approve workflow through which
// employees ask the office to fix their time entries.
package correction

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/parse"
	"zeiterfassung-backend/internal/store"
)

// Workflow moves correction requests from pending to approved or rejected.
type Workflow struct {
	store store.Store
	clock clock.Clock
	loc   *time.Location
	log   logrus.FieldLogger
}

// NewWorkflow creates a workflow. Timestamps without a zone are read in loc.
func NewWorkflow(s store.Store, c clock.Clock, loc *time.Location, log logrus.FieldLogger) *Workflow {
	if loc == nil {
		loc = time.UTC
	}
	return &Workflow{store: s, clock: c, loc: loc, log: log.WithField("component", "correction")}
}

// SubmitInput is an employee's correction request.
type SubmitInput struct {
	TimeEntryID int64  `json:"time_entry_id" binding:"required"`
	Type        string `json:"correction_type" binding:"required"`
	OldValue    string `json:"old_value"`
	NewValue    string `json:"new_value"`
	Reason      string `json:"reason"`
}

// change is a parsed new value.
type change struct {
	at     time.Time
	siteID int64
}

func (w *Workflow) parseChange(kind, value string) (change, error) {
	switch kind {
	case model.CorrectionCheckIn, model.CorrectionCheckOut:
		t, err := parse.Timestamp(value, w.loc)
		if err != nil {
			return change{}, apperr.Validation("%v", err)
		}
		return change{at: t}, nil
	case model.CorrectionSite:
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || id <= 0 {
			return change{}, apperr.Validation("invalid object id %q", value)
		}
		return change{siteID: id}, nil
	case model.CorrectionDelete:
		return change{}, nil
	}
	return change{}, apperr.Validation("unknown correction type %q", kind)
}

func employeeOf(ctx context.Context, tx store.Store, actor model.Actor) (*model.Employee, error) {
	if actor.EmployeeID != 0 {
		return tx.GetEmployee(ctx, actor.EmployeeID)
	}
	return tx.GetEmployeeByUser(ctx, actor.UserID)
}

// Submit files a pending request against one of the actor's entries.
func (w *Workflow) Submit(ctx context.Context, actor model.Actor, in SubmitInput) (*model.CorrectionRequest, error) {
	if _, err := w.parseChange(in.Type, in.NewValue); err != nil {
		return nil, err
	}
	var c *model.CorrectionRequest
	err := w.store.Transaction(ctx, func(tx store.Store) error {
		emp, err := employeeOf(ctx, tx, actor)
		if err != nil {
			return err
		}
		entry, err := tx.GetEntry(ctx, in.TimeEntryID)
		if err != nil {
			return err
		}
		if entry.EmployeeID != emp.ID {
			return apperr.NotFound("time entry %d", in.TimeEntryID)
		}
		_, err = tx.PendingCorrection(ctx, entry.ID)
		switch {
		case err == nil:
			return apperr.InvalidState("time entry %d already has a pending correction", entry.ID)
		case !apperr.IsNotFound(err):
			return err
		}
		c = &model.CorrectionRequest{
			EmployeeID:  emp.ID,
			TimeEntryID: entry.ID,
			Type:        in.Type,
			OldValue:    in.OldValue,
			NewValue:    in.NewValue,
			Reason:      in.Reason,
			Status:      model.CorrectionPending,
		}
		return tx.CreateCorrection(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	w.log.WithFields(logrus.Fields{"correction_id": c.ID, "entry_id": c.TimeEntryID, "type": c.Type}).Info("correction submitted")
	return c, nil
}

// Approve applies the requested change and closes the request in one transaction.
func (w *Workflow) Approve(ctx context.Context, actor model.Actor, id int64, response string) (*model.CorrectionRequest, error) {
	return w.decide(ctx, actor, id, model.CorrectionApproved, response)
}

// Reject closes the request without touching the entry.
func (w *Workflow) Reject(ctx context.Context, actor model.Actor, id int64, response string) (*model.CorrectionRequest, error) {
	return w.decide(ctx, actor, id, model.CorrectionRejected, response)
}

// Decide dispatches on status, "approved" or "rejected".
func (w *Workflow) Decide(ctx context.Context, actor model.Actor, id int64, status, response string) (*model.CorrectionRequest, error) {
	switch status {
	case model.CorrectionApproved, model.CorrectionRejected:
		return w.decide(ctx, actor, id, status, response)
	}
	return nil, apperr.Validation("status must be %q or %q", model.CorrectionApproved, model.CorrectionRejected)
}

func (w *Workflow) decide(ctx context.Context, actor model.Actor, id int64, status, response string) (*model.CorrectionRequest, error) {
	if !actor.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	var c *model.CorrectionRequest
	err := w.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		if c, err = tx.GetCorrection(ctx, id); err != nil {
			return err
		}
		if c.Status != model.CorrectionPending {
			return apperr.InvalidState("correction %d is already %s", id, c.Status)
		}
		if status == model.CorrectionApproved {
			if err := w.apply(ctx, tx, c); err != nil {
				return err
			}
		}
		now := w.clock.Now().UTC()
		by := actor.UserID
		c.Status = status
		c.AdminResponse = response
		c.ProcessedBy = &by
		c.ProcessedAt = &now
		return tx.SaveCorrection(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	w.log.WithFields(logrus.Fields{"correction_id": id, "status": status}).Info("correction processed")
	return c, nil
}

func (w *Workflow) apply(ctx context.Context, tx store.Store, c *model.CorrectionRequest) error {
	ch, err := w.parseChange(c.Type, c.NewValue)
	if err != nil {
		return err
	}
	entry, err := tx.GetEntry(ctx, c.TimeEntryID)
	if err != nil {
		return err
	}
	switch c.Type {
	case model.CorrectionCheckIn:
		if entry.CheckOut != nil && ch.at.After(*entry.CheckOut) {
			return apperr.Validation("check-in %s would follow the check-out", c.NewValue)
		}
		entry.CheckIn = ch.at
	case model.CorrectionCheckOut:
		if ch.at.Before(entry.CheckIn) {
			return apperr.Validation("check-out %s would precede the check-in", c.NewValue)
		}
		at := ch.at
		entry.CheckOut = &at
	case model.CorrectionSite:
		if _, err := tx.GetSite(ctx, ch.siteID); err != nil {
			return err
		}
		entry.SiteID = ch.siteID
	case model.CorrectionDelete:
		if err := tx.DeleteBreaks(ctx, entry.ID); err != nil {
			return err
		}
		return tx.DeleteEntry(ctx, entry.ID)
	}
	return tx.SaveEntry(ctx, entry)
}

// View is a request with display names.
type View struct {
	model.CorrectionRequest
	EmployeeName string `json:"employee_name"`
	SiteName     string `json:"object_name,omitempty"`
}

// List is the result of List. Pending is only counted for admins.
type List struct {
	Total       int    `json:"total"`
	Pending     int64  `json:"pending"`
	Corrections []View `json:"corrections"`
}

// List returns every request for admins and the actor's own otherwise, newest first.
func (w *Workflow) List(ctx context.Context, actor model.Actor, status string) (*List, error) {
	f := store.CorrectionFilter{Status: status}
	out := &List{Corrections: []View{}}
	if !actor.IsAdmin() {
		emp, err := employeeOf(ctx, w.store, actor)
		if apperr.IsNotFound(err) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		f.EmployeeID = emp.ID
	}
	items, err := w.store.ListCorrections(ctx, f)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		if out.Pending, err = w.store.CountCorrections(ctx, store.CorrectionFilter{Status: model.CorrectionPending}); err != nil {
			return nil, err
		}
	}

	names := map[int64]string{}
	sites := map[int64]string{}
	for _, c := range items {
		v := View{CorrectionRequest: c}
		if _, ok := names[c.EmployeeID]; !ok {
			if emp, err := w.store.GetEmployee(ctx, c.EmployeeID); err == nil {
				names[c.EmployeeID] = emp.FullName()
			}
		}
		v.EmployeeName = names[c.EmployeeID]
		if entry, err := w.store.GetEntry(ctx, c.TimeEntryID); err == nil {
			if _, ok := sites[entry.SiteID]; !ok {
				if site, err := w.store.GetSite(ctx, entry.SiteID); err == nil {
					sites[entry.SiteID] = site.Name
				}
			}
			v.SiteName = sites[entry.SiteID]
		}
		out.Corrections = append(out.Corrections, v)
	}
	out.Total = len(out.Corrections)
	return out, nil
}
