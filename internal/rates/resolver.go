// Package rates computes payable hours and hourly rates under per-customer
// defaults and per-employee special rules.
package rates

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/store"
)

const (
	// FallbackHours applies when neither a special rule nor a customer default exists.
	FallbackHours = 8.0
	// DefaultMinijobCap is the monthly earnings cap of minijob employees without their own.
	DefaultMinijobCap = 556.0
)

// Resolver answers payable-hours questions.
type Resolver struct {
	store store.Store
	clock clock.Clock
	log   logrus.FieldLogger
}

// NewResolver creates a resolver.
func NewResolver(s store.Store, c clock.Clock, log logrus.FieldLogger) *Resolver {
	return &Resolver{store: s, clock: c, log: log.WithField("component", "rates")}
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Hours     float64 `json:"hours"`
	Rate      float64 `json:"rate"`
	IsSpecial bool    `json:"is_special"`
	Note      string  `json:"note,omitempty"`
}

// Resolve returns the payable hours of an employee at a customer: an active
// special rule with nonzero hours wins over the customer default, which wins
// over FallbackHours. The rate is the rule's special rate when set, else the
// employee's base rate.
func (r *Resolver) Resolve(ctx context.Context, employeeID, customerID int64) (*Resolution, error) {
	emp, err := r.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	base := orDefault(emp.HourlyRate, DefaultStandardRate)

	rule, err := r.store.FindSpecialRule(ctx, employeeID, customerID, true)
	switch {
	case err == nil && rule.SpecialHours != 0:
		res := &Resolution{Hours: rule.SpecialHours, Rate: base, IsSpecial: true, Note: rule.Note}
		if rule.SpecialRate != nil {
			res.Rate = *rule.SpecialRate
		}
		return res, nil
	case err != nil && !apperr.IsNotFound(err):
		return nil, err
	}

	hours, err := r.store.GetCustomerHours(ctx, customerID)
	switch {
	case err == nil:
		return &Resolution{Hours: hours.DefaultHours, Rate: base}, nil
	case !apperr.IsNotFound(err):
		return nil, err
	}
	return &Resolution{Hours: FallbackHours, Rate: base, Note: "Keine Sollstunden definiert - Standard 8h"}, nil
}

// RateForSite returns the classifier rate of an employee at a site.
func (r *Resolver) RateForSite(ctx context.Context, emp model.Employee, siteID int64) (float64, error) {
	site, err := r.store.GetSite(ctx, siteID)
	if err != nil {
		return 0, err
	}
	return RateFor(emp, site.Name), nil
}

// MinijobStatus reports an employee's month against the minijob cap.
type MinijobStatus struct {
	IsMinijob       bool    `json:"is_minijob"`
	EmploymentType  string  `json:"employment_type"`
	MaxAmount       float64 `json:"max_amount,omitempty"`
	CurrentAmount   float64 `json:"current_amount,omitempty"`
	RemainingAmount float64 `json:"remaining_amount,omitempty"`
	Warning         bool    `json:"warning"`
	Critical        bool    `json:"critical"`
}

// MinijobCheck sums the closed entries of month (minus unpaid breaks, times the
// applied rate) and compares the amount with the employee's cap: warning at
// 90 percent, critical at 100 percent.
func (r *Resolver) MinijobCheck(ctx context.Context, employeeID int64, month time.Time) (*MinijobStatus, error) {
	emp, err := r.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if emp.EmploymentType != model.EmploymentMinijob {
		return &MinijobStatus{EmploymentType: emp.EmploymentType}, nil
	}

	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	to := from.AddDate(0, 1, 0)
	entries, err := r.store.ListEntries(ctx, store.EntryFilter{EmployeeID: emp.ID, From: &from, To: &to, ClosedOnly: true})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	breaks, err := r.store.ListBreaks(ctx, ids)
	if err != nil {
		return nil, err
	}
	unpaid := map[int64]time.Duration{}
	for _, b := range breaks {
		if !b.IsPaid && b.End != nil {
			unpaid[b.TimeEntryID] += b.Duration(*b.End)
		}
	}

	var amount float64
	for _, e := range entries {
		worked := e.Duration(*e.CheckOut) - unpaid[e.ID]
		if worked <= 0 {
			continue
		}
		rate := e.HourlyRate
		if rate <= 0 {
			rate = orDefault(emp.HourlyRate, DefaultStandardRate)
		}
		amount += worked.Hours() * rate
	}
	amount = math.Round(amount*100) / 100

	limit := orDefault(emp.MaxMonthlyAmount, DefaultMinijobCap)
	return &MinijobStatus{
		IsMinijob:       true,
		EmploymentType:  emp.EmploymentType,
		MaxAmount:       limit,
		CurrentAmount:   amount,
		RemainingAmount: math.Round((limit-amount)*100) / 100,
		Warning:         amount >= limit*0.9,
		Critical:        amount >= limit,
	}, nil
}
