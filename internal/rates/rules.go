package rates

import (
	"context"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/store"
)

// SetCustomerHours inserts or replaces the default payable hours of a customer.
func (r *Resolver) SetCustomerHours(ctx context.Context, customerID int64, hours float64, cleaningType string) (*model.CustomerHours, error) {
	if hours < 0 {
		return nil, apperr.Validation("default_hours must not be negative")
	}
	if cleaningType == "" {
		cleaningType = "unterhalt"
	}
	h := &model.CustomerHours{CustomerID: customerID, DefaultHours: hours, CleaningType: cleaningType}
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetCustomer(ctx, customerID); err != nil {
			return err
		}
		return tx.SaveCustomerHours(ctx, h)
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// SpecialRuleInput creates or updates the rule of one (employee, customer) pair.
type SpecialRuleInput struct {
	EmployeeID   int64    `json:"employee_id" binding:"required"`
	CustomerID   int64    `json:"customer_id" binding:"required"`
	SpecialHours float64  `json:"special_hours" binding:"gte=0"`
	SpecialRate  *float64 `json:"special_rate,omitempty"`
	Note         string   `json:"note"`
}

// SaveSpecialRule upserts the rule of the pair and reactivates it.
func (r *Resolver) SaveSpecialRule(ctx context.Context, in SpecialRuleInput) (*model.SpecialRule, error) {
	if in.SpecialHours < 0 {
		return nil, apperr.Validation("special_hours must not be negative")
	}
	var rule *model.SpecialRule
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetEmployee(ctx, in.EmployeeID); err != nil {
			return err
		}
		if _, err := tx.GetCustomer(ctx, in.CustomerID); err != nil {
			return err
		}
		existing, err := tx.FindSpecialRule(ctx, in.EmployeeID, in.CustomerID, false)
		switch {
		case err == nil:
			rule = existing
		case apperr.IsNotFound(err):
			rule = &model.SpecialRule{EmployeeID: in.EmployeeID, CustomerID: in.CustomerID}
		default:
			return err
		}
		rule.SpecialHours = in.SpecialHours
		rule.SpecialRate = in.SpecialRate
		rule.Note = in.Note
		rule.Active = true
		return tx.SaveSpecialRule(ctx, rule)
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// DeactivateSpecialRule soft-deletes a rule.
func (r *Resolver) DeactivateSpecialRule(ctx context.Context, id int64) error {
	return r.store.Transaction(ctx, func(tx store.Store) error {
		rule, err := tx.GetSpecialRule(ctx, id)
		if err != nil {
			return err
		}
		rule.Active = false
		return tx.SaveSpecialRule(ctx, rule)
	})
}

// RuleView is an active rule with display names and the customer default it overrides.
type RuleView struct {
	model.SpecialRule
	EmployeeName  string   `json:"employee_name"`
	CustomerName  string   `json:"customer_name"`
	StandardHours *float64 `json:"standard_hours"`
}

// ListSpecialRules returns every active rule.
func (r *Resolver) ListSpecialRules(ctx context.Context) ([]RuleView, error) {
	rules, err := r.store.ListSpecialRules(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]RuleView, 0, len(rules))
	for _, rule := range rules {
		v := RuleView{SpecialRule: rule}
		if emp, err := r.store.GetEmployee(ctx, rule.EmployeeID); err == nil {
			v.EmployeeName = emp.FullName()
		} else {
			r.log.WithError(err).WithField("rule_id", rule.ID).Warn("special rule without employee")
		}
		if c, err := r.store.GetCustomer(ctx, rule.CustomerID); err == nil {
			v.CustomerName = c.Name
		}
		if h, err := r.store.GetCustomerHours(ctx, rule.CustomerID); err == nil {
			hours := h.DefaultHours
			v.StandardHours = &hours
		}
		out = append(out, v)
	}
	return out, nil
}
