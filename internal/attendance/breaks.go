package attendance

import (
	"context"
	"errors"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/store"
)

// StartBreak opens a break inside the current entry. Only one break may run at a time.
func (r *Recorder) StartBreak(ctx context.Context, userID int64, paid bool) (*model.BreakEntry, error) {
	now := r.clock.Now()
	var b *model.BreakEntry
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		_, e, err := r.current(ctx, tx, userID)
		if err != nil {
			return err
		}
		_, err = tx.OpenBreak(ctx, e.ID)
		switch {
		case err == nil:
			return apperr.InvalidState("a break is already running")
		case !apperr.IsNotFound(err):
			return err
		}
		b = &model.BreakEntry{TimeEntryID: e.ID, Start: now, IsPaid: paid}
		return tx.CreateBreak(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// EndBreak ends a running break of one of the user's entries.
func (r *Recorder) EndBreak(ctx context.Context, userID, breakID int64) (*model.BreakEntry, error) {
	now := r.clock.Now()
	var b *model.BreakEntry
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		emp, err := tx.GetEmployeeByUser(ctx, userID)
		if err != nil {
			return err
		}
		if b, err = tx.GetBreak(ctx, breakID); err != nil {
			return err
		}
		e, err := tx.GetEntry(ctx, b.TimeEntryID)
		if err != nil {
			return err
		}
		if e.EmployeeID != emp.ID || b.End != nil {
			return apperr.NotFound("active break %d", breakID)
		}
		end := now
		if end.Before(b.Start) {
			end = b.Start
		}
		b.End = &end
		return tx.SaveBreak(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CurrentBreak returns the running break of the current entry, or nil.
func (r *Recorder) CurrentBreak(ctx context.Context, userID int64) (*model.BreakEntry, error) {
	_, e, err := r.current(ctx, r.store, userID)
	if errors.Is(err, ErrNoActiveEntry) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b, err := r.store.OpenBreak(ctx, e.ID)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	return b, err
}
