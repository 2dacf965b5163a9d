package reconcile

import (
	"context"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/store"
)

// DefaultWarningLimit caps ListWarnings when no limit is given.
const DefaultWarningLimit = 100

// ListWarnings pages through all warnings, newest first. Admin only.
func (e *Engine) ListWarnings(ctx context.Context, actor model.Actor, unresolvedOnly bool, offset, limit int) ([]model.Warning, error) {
	if !actor.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	if limit <= 0 {
		limit = DefaultWarningLimit
	}
	return e.store.ListWarnings(ctx, store.WarningFilter{UnresolvedOnly: unresolvedOnly, Offset: max(offset, 0), Limit: limit})
}

// MyWarnings lists the actor's own unresolved warnings.
func (e *Engine) MyWarnings(ctx context.Context, actor model.Actor) ([]model.Warning, error) {
	employeeID := actor.EmployeeID
	if employeeID == 0 {
		emp, err := e.store.GetEmployeeByUser(ctx, actor.UserID)
		if apperr.IsNotFound(err) {
			return []model.Warning{}, nil
		}
		if err != nil {
			return nil, err
		}
		employeeID = emp.ID
	}
	return e.store.ListWarnings(ctx, store.WarningFilter{EmployeeID: employeeID, UnresolvedOnly: true})
}

// ResolveWarning marks a warning as handled. Admin only.
func (e *Engine) ResolveWarning(ctx context.Context, actor model.Actor, id int64) (*model.Warning, error) {
	if !actor.IsAdmin() {
		return nil, apperr.ErrForbidden
	}
	var w *model.Warning
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		if w, err = tx.GetWarning(ctx, id); err != nil {
			return err
		}
		now := e.clock.Now().UTC()
		by := actor.UserID
		w.Resolved = true
		w.ResolvedAt = &now
		w.ResolvedBy = &by
		return tx.SaveWarning(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	e.log.WithField("warning_id", id).Info("warning resolved")
	return w, nil
}
