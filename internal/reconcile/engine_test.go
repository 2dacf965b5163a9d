package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeiterfassung-backend/config"
	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/logging"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/schedule"
	"zeiterfassung-backend/internal/store"
	"zeiterfassung-backend/internal/store/storetest"
)

// at returns Monday, 6 January 2025 at hh:mm UTC.
func at(hh, mm int) time.Time {
	return time.Date(2025, 1, 6, hh, mm, 0, 0, time.UTC)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) Notify(_ context.Context, employeeName, warningType, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, employeeName+"/"+warningType)
	return nil
}

type fixture struct {
	engine   *Engine
	store    store.Store
	clock    *clock.Manual
	notifier *recordingNotifier
}

func newFixture(t *testing.T, seed uint64) *fixture {
	t.Helper()
	s := storetest.New(t)
	c := clock.NewManual(at(8, 0))
	log := logging.Discard()
	cfg := config.Default().Reconcile
	n := &recordingNotifier{}
	j := NewJitter(seed, 3*time.Minute, 6*time.Minute)
	e := NewEngine(s, schedule.NewService(s, c, log), c, cfg, j, n, log)
	return &fixture{engine: e, store: s, clock: c, notifier: n}
}

func (f *fixture) entries(t *testing.T, employeeID int64) []model.TimeEntry {
	t.Helper()
	out, err := f.store.ListEntries(context.Background(), store.EntryFilter{EmployeeID: employeeID})
	require.NoError(t, err)
	return out
}

func (f *fixture) warnings(t *testing.T, kind string) []model.Warning {
	t.Helper()
	out, err := f.store.ListWarnings(context.Background(), store.WarningFilter{Type: kind})
	require.NoError(t, err)
	return out
}

func TestJitter(t *testing.T) {
	j := NewJitter(7, 3*time.Minute, 6*time.Minute)
	var neg, pos int
	for i := 0; i < 500; i++ {
		d := j.Offset()
		mag := d.Abs()
		require.GreaterOrEqual(t, mag, 3*time.Minute)
		require.LessOrEqual(t, mag, 6*time.Minute)
		assert.Zero(t, d%time.Second)
		if d < 0 {
			neg++
		} else {
			pos++
		}
	}
	assert.Positive(t, neg)
	assert.Positive(t, pos)

	a, b := NewJitter(99, 3*time.Minute, 6*time.Minute), NewJitter(99, 3*time.Minute, 6*time.Minute)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Offset(), b.Offset(), "same seed, same sequence")
	}
}

func TestShiftState(t *testing.T) {
	from, _ := model.Clock("06:00")
	to, _ := model.Clock("14:00")
	sh := model.Shift{ID: 1, EmployeeID: 1, SiteID: 10, StartTime: &from, EndTime: &to}
	window := 10 * time.Minute

	open := func(site int64) model.TimeEntry {
		return model.TimeEntry{SiteID: site, CheckIn: at(6, 1)}
	}
	done := func(site int64) model.TimeEntry {
		out := at(9, 0)
		return model.TimeEntry{SiteID: site, CheckIn: at(6, 1), CheckOut: &out}
	}

	testCases := []struct {
		name    string
		shift   model.Shift
		entries []model.TimeEntry
		now     time.Time
		want    State
	}{
		{name: "before the window", shift: sh, now: at(5, 49), want: StatePending},
		{name: "window opens", shift: sh, now: at(5, 50), want: StateStartWindow},
		{name: "inside the window", shift: sh, now: at(6, 2), want: StateStartWindow},
		{name: "window missed", shift: sh, now: at(6, 11), want: StateClosed},
		{name: "entry at another site is ignored", shift: sh, entries: []model.TimeEntry{open(11)}, now: at(6, 5), want: StateStartWindow},
		{name: "stamped", shift: sh, entries: []model.TimeEntry{open(10)}, now: at(9, 0), want: StateStamped},
		{name: "end window", shift: sh, entries: []model.TimeEntry{open(10)}, now: at(13, 55), want: StateEndWindow},
		{name: "overdue stays stamped", shift: sh, entries: []model.TimeEntry{open(10)}, now: at(14, 30), want: StateStamped},
		{name: "closed", shift: sh, entries: []model.TimeEntry{done(10)}, now: at(6, 5), want: StateClosed},
		{name: "no times", shift: model.Shift{SiteID: 10}, now: at(6, 0), want: StatePending},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShiftState(tc.shift, tc.entries, tc.now, window))
		})
	}
}

func TestBoundsWrapMidnight(t *testing.T) {
	from, _ := model.Clock("22:00")
	to, _ := model.Clock("02:00")
	start, end, ok := Bounds(model.Shift{StartTime: &from, EndTime: &to}, at(12, 0))
	require.True(t, ok)
	assert.Equal(t, at(22, 0), start)
	assert.Equal(t, time.Date(2025, 1, 7, 2, 0, 0, 0, time.UTC), end)
}

func TestTickStampsScheduledShift(t *testing.T) {
	for seed := uint64(1); seed <= 8; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, seed)
			emp := storetest.Employee(t, f.store, 1, model.CategoryA)
			manual := storetest.Employee(t, f.store, 2, model.CategoryC)
			site := storetest.Site(t, f.store, 0, "Objekt X")
			storetest.Shift(t, f.store, emp.ID, site.ID, 0, "06:00", "14:00")
			storetest.Shift(t, f.store, manual.ID, site.ID, 0, "06:00", "14:00")

			res, err := f.engine.Tick(ctx, at(6, 2))
			require.NoError(t, err)
			assert.Equal(t, TickResult{CheckedIn: 1}, res)

			entries := f.entries(t, emp.ID)
			require.Len(t, entries, 1)
			in := entries[0].CheckIn
			assert.WithinDuration(t, at(6, 2), in, 6*time.Minute)
			assert.False(t, in.Before(at(5, 54)))
			assert.Empty(t, f.entries(t, manual.ID), "only category A is stamped")

			res, err = f.engine.Tick(ctx, at(6, 3))
			require.NoError(t, err)
			assert.Equal(t, TickResult{}, res, "ticks are idempotent")

			res, err = f.engine.Tick(ctx, at(14, 3))
			require.NoError(t, err)
			assert.Equal(t, TickResult{CheckedOut: 1}, res)

			entries = f.entries(t, emp.ID)
			require.Len(t, entries, 1)
			require.NotNil(t, entries[0].CheckOut)
			out := *entries[0].CheckOut
			assert.WithinDuration(t, at(14, 3), out, 6*time.Minute)
			worked := out.Sub(in)
			assert.GreaterOrEqual(t, worked, 7*time.Hour+45*time.Minute)
			assert.LessOrEqual(t, worked, 8*time.Hour+15*time.Minute)

			res, err = f.engine.Tick(ctx, at(14, 5))
			require.NoError(t, err)
			assert.Equal(t, TickResult{}, res)
		})
	}
}

func TestTickForceClosesOpenEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	emp := storetest.Employee(t, f.store, 1, model.CategoryA)
	site := storetest.Site(t, f.store, 0, "Objekt X")
	other := storetest.Site(t, f.store, 0, "Objekt Y")
	storetest.Shift(t, f.store, emp.ID, site.ID, 0, "06:00", "14:00")
	require.NoError(t, f.store.CreateEntry(ctx, &model.TimeEntry{EmployeeID: emp.ID, SiteID: other.ID, CheckIn: at(5, 0)}))

	res, err := f.engine.Tick(ctx, at(6, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.CheckedIn)

	open, err := f.store.ListEntries(ctx, store.EntryFilter{EmployeeID: emp.ID, OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, site.ID, open[0].SiteID)
}

func TestAutoCheckOutNeverPrecedesCheckIn(t *testing.T) {
	for seed := uint64(1); seed <= 6; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, seed)
			f.engine.jitter = NewJitter(seed, 6*time.Minute, 6*time.Minute)
			emp := storetest.Employee(t, f.store, 1, model.CategoryA)
			site := storetest.Site(t, f.store, 0, "Objekt X")
			storetest.Shift(t, f.store, emp.ID, site.ID, 0, "06:00", "14:00")
			require.NoError(t, f.store.CreateEntry(ctx, &model.TimeEntry{EmployeeID: emp.ID, SiteID: site.ID, CheckIn: at(13, 59)}))

			_, err := f.engine.Tick(ctx, at(14, 0))
			require.NoError(t, err)
			entries := f.entries(t, emp.ID)
			require.NotNil(t, entries[0].CheckOut)
			out := *entries[0].CheckOut
			assert.True(t, out.Equal(at(14, 6)) || out.Equal(at(14, 59)), "got %s", out)
		})
	}
}

func TestAuditNoShows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	absent := storetest.Employee(t, f.store, 1, model.CategoryC)
	present := storetest.Employee(t, f.store, 2, model.CategoryC)
	onLeave := storetest.Employee(t, f.store, 3, model.CategoryC)
	site := storetest.Site(t, f.store, 0, "Rathaus")
	storetest.Shift(t, f.store, absent.ID, site.ID, 0, "06:00", "09:00")
	storetest.Shift(t, f.store, present.ID, site.ID, 0, "06:00", "09:00")
	leave := storetest.Shift(t, f.store, onLeave.ID, site.ID, 0, "06:00", "09:00")
	leave.Status = "urlaub"
	require.NoError(t, f.store.SaveShift(ctx, leave))
	require.NoError(t, f.store.CreateEntry(ctx, &model.TimeEntry{EmployeeID: present.ID, SiteID: site.ID, CheckIn: at(6, 0)}))

	n, err := f.engine.AuditNoShows(ctx, at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ws := f.warnings(t, model.WarningNoShow)
	require.Len(t, ws, 1)
	assert.Equal(t, absent.ID, ws[0].EmployeeID)
	assert.Contains(t, ws[0].Message, "06:00")
	assert.Equal(t, []string{absent.FullName() + "/" + model.WarningNoShow}, f.notifier.calls)

	n, err = f.engine.AuditNoShows(ctx, at(10, 30))
	require.NoError(t, err)
	assert.Zero(t, n, "an unresolved no-show since midnight suppresses duplicates")
}

func TestForgottenCheckout(t *testing.T) {
	f := newFixture(t, 1)
	testCases := []struct {
		name    string
		in, now time.Time
		want    time.Time
	}{
		{name: "default hour", in: at(7, 0), now: at(23, 0), want: at(20, 0)},
		{name: "now is earlier", in: at(7, 0), now: at(12, 0), want: at(12, 0)},
		{name: "maximum open span", in: at(5, 0), now: at(23, 0), want: at(19, 0)},
		{name: "check-in after the default hour", in: at(21, 0), now: at(23, 30), want: at(23, 30)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.engine.forgottenCheckout(tc.in, tc.now))
		})
	}
	assert.Equal(t, time.Date(2025, 1, 7, 5, 0, 0, 0, time.UTC), f.engine.forgottenCheckout(at(21, 0), at(21, 0).Add(12*time.Hour)))
}

func TestCloseForgotten(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	emp := storetest.Employee(t, f.store, 1, model.CategoryC)
	site := storetest.Site(t, f.store, 0, "Rathaus")
	today := &model.TimeEntry{EmployeeID: emp.ID, SiteID: site.ID, CheckIn: at(7, 0), Notes: "Frühschicht"}
	require.NoError(t, f.store.CreateEntry(ctx, today))
	yesterday := &model.TimeEntry{EmployeeID: emp.ID, SiteID: site.ID, CheckIn: at(7, 0).AddDate(0, 0, -1)}
	require.NoError(t, f.store.CreateEntry(ctx, yesterday))

	n, err := f.engine.CloseForgotten(ctx, at(23, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	closed, err := f.store.GetEntry(ctx, today.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.CheckOut)
	assert.WithinDuration(t, at(20, 0), *closed.CheckOut, 0)
	assert.Equal(t, "Frühschicht "+AutoCheckoutMarker, closed.Notes)

	untouched, err := f.store.GetEntry(ctx, yesterday.ID)
	require.NoError(t, err)
	assert.True(t, untouched.Open())

	ws := f.warnings(t, model.WarningForgottenCheckout)
	require.Len(t, ws, 1)
	assert.Contains(t, ws[0].Message, "07:00")
	assert.Contains(t, ws[0].Message, "20:00")
}

func TestCheckExcessiveHours(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	emp := storetest.Employee(t, f.store, 1, model.CategoryC)
	site := storetest.Site(t, f.store, 0, "Rathaus")
	require.NoError(t, f.store.CreateEntry(ctx, &model.TimeEntry{EmployeeID: emp.ID, SiteID: site.ID, CheckIn: at(6, 0)}))

	testCases := []struct {
		name string
		now  time.Time
		want int
	}{
		{name: "below the threshold", now: at(15, 0), want: 0},
		{name: "first warning", now: at(17, 0), want: 1},
		{name: "inside the cooldown", now: at(18, 0), want: 0},
		{name: "after the cooldown", now: at(19, 30), want: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := f.engine.CheckExcessiveHours(ctx, tc.now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
	assert.Len(t, f.warnings(t, model.WarningExcessiveHours), 2)
}

func TestCheckScheduleCompliance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	planned := storetest.Employee(t, f.store, 1, model.CategoryC)
	free := storetest.Employee(t, f.store, 2, model.CategoryC)
	site := storetest.Site(t, f.store, 0, "Rathaus")
	other := storetest.Site(t, f.store, 0, "Bahnhof")
	storetest.Shift(t, f.store, planned.ID, site.ID, 0, "06:00", "14:00")

	ok, err := f.engine.CheckScheduleCompliance(ctx, planned.ID, site.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.engine.CheckScheduleCompliance(ctx, free.ID, other.ID)
	require.NoError(t, err)
	assert.True(t, ok, "no shift today")

	ok, err = f.engine.CheckScheduleCompliance(ctx, planned.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ws := f.warnings(t, model.WarningWrongSite)
	require.Len(t, ws, 1)
	assert.Equal(t, planned.ID, ws[0].EmployeeID)
}

func TestRunAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	emp := storetest.Employee(t, f.store, 1, model.CategoryC)
	absent := storetest.Employee(t, f.store, 2, model.CategoryC)
	site := storetest.Site(t, f.store, 0, "Rathaus")
	storetest.Shift(t, f.store, absent.ID, site.ID, 0, "06:00", "09:00")
	require.NoError(t, f.store.CreateEntry(ctx, &model.TimeEntry{EmployeeID: emp.ID, SiteID: site.ID, CheckIn: at(7, 0)}))

	res, err := f.engine.RunAll(ctx, at(22, 0))
	require.NoError(t, err)
	assert.Equal(t, &RunAllResult{MissingCheckouts: 1, NoShows: 1}, res)
}

func TestWarningAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	emp := storetest.Employee(t, f.store, 1, model.CategoryC)
	other := storetest.Employee(t, f.store, 2, model.CategoryC)
	for _, id := range []int64{emp.ID, emp.ID, other.ID} {
		require.NoError(t, f.store.CreateWarning(ctx, &model.Warning{EmployeeID: id, Type: model.WarningNoShow, CreatedAt: at(10, 0)}))
	}
	admin := model.Actor{UserID: 100, Role: model.RoleAdmin}
	user := model.Actor{UserID: 1, Role: model.RoleEmployee}

	_, err := f.engine.ListWarnings(ctx, user, true, 0, 0)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.True(t, apperr.IsInvalidState(err))
	_, err = f.engine.ResolveWarning(ctx, user, 1)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	all, err := f.engine.ListWarnings(ctx, admin, true, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	page, err := f.engine.ListWarnings(ctx, admin, true, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	mine, err := f.engine.MyWarnings(ctx, user)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	resolved, err := f.engine.ResolveWarning(ctx, admin, mine[0].ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, int64(100), *resolved.ResolvedBy)

	mine, err = f.engine.MyWarnings(ctx, user)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = f.engine.ResolveWarning(ctx, admin, 999)
	assert.True(t, apperr.IsNotFound(err))

	none, err := f.engine.MyWarnings(ctx, model.Actor{UserID: 55})
	require.NoError(t, err)
	assert.Empty(t, none)
}
