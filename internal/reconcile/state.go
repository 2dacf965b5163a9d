package reconcile

import (
	"time"

	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/model"
)

// State is the progress of one shift on one day.
type State string

const (
	StatePending     State = "pending"
	StateStartWindow State = "start_window"
	StateStamped     State = "stamped"
	StateEndWindow   State = "end_window"
	StateClosed      State = "closed"
)

// Bounds returns the shift's start and end on the calendar day of `day`. An
// end at or before the start lies on the next day. ok is false when the shift
// has no times.
func Bounds(sh model.Shift, day time.Time) (start, end time.Time, ok bool) {
	if sh.StartTime == nil || sh.EndTime == nil {
		return time.Time{}, time.Time{}, false
	}
	start = clock.At(day, int(*sh.StartTime))
	end = clock.At(day, int(*sh.EndTime))
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, true
}

// ShiftState derives the state of sh at now from the employee's entries of
// the day. window is the tolerance around each boundary. A shift nobody
// stamped for before its start window passed is closed as well; the no-show
// audit reports it.
func ShiftState(sh model.Shift, entries []model.TimeEntry, now time.Time, window time.Duration) State {
	start, end, ok := Bounds(sh, now)
	if !ok {
		return StatePending
	}

	var seen, open bool
	for _, e := range entries {
		if e.SiteID != sh.SiteID {
			continue
		}
		seen = true
		if e.Open() {
			open = true
		}
	}

	switch {
	case open && within(now, end, window):
		return StateEndWindow
	case open:
		return StateStamped
	case seen:
		return StateClosed
	case now.Before(start.Add(-window)):
		return StatePending
	case within(now, start, window):
		return StateStartWindow
	}
	return StateClosed
}

func within(now, at time.Time, window time.Duration) bool {
	return !now.Before(at.Add(-window)) && !now.After(at.Add(window))
}
