package rates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/logging"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/store"
	"zeiterfassung-backend/internal/store/storetest"
)

func newResolver(t *testing.T) (*Resolver, store.Store) {
	t.Helper()
	s := storetest.New(t)
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	return NewResolver(s, clock.NewManual(now), logging.Discard()), s
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		site string
		want Service
	}{
		{name: "window german", site: "Fensterreinigung Rathaus", want: ServiceWindow},
		{name: "window english upper", site: "WINDOW CLEANING", want: ServiceWindow},
		{name: "basic", site: "Grundreinigung Halle 3", want: ServiceBasic},
		{name: "basic english", site: "basic clean", want: ServiceBasic},
		{name: "office maps to window", site: "BÜRO Müller", want: ServiceWindow},
		{name: "headquarters", site: "Zentrale", want: ServiceWindow},
		{name: "first match wins", site: "Fenster Grundreinigung", want: ServiceWindow},
		{name: "standard", site: "Kita Sonnenschein", want: ServiceStandard},
		{name: "empty", site: "", want: ServiceStandard},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.site))
		})
	}
}

func TestRateFor(t *testing.T) {
	unset := model.Employee{}
	assert.Equal(t, DefaultWindowRate, RateFor(unset, "Fenster"))
	assert.Equal(t, DefaultBasicRate, RateFor(unset, "Grund"))
	assert.Equal(t, DefaultStandardRate, RateFor(unset, "Schule"))

	custom := model.Employee{HourlyRateStandard: 14, HourlyRateWindow: 22, HourlyRateBasic: 19}
	assert.Equal(t, 22.0, RateFor(custom, "Zentrale Nord"))
	assert.Equal(t, 19.0, RateFor(custom, "grundreinigung"))
	assert.Equal(t, 14.0, RateFor(custom, "Schule"))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	r, s := newResolver(t)
	emp := storetest.Employee(t, s, 1, model.CategoryC)
	site := storetest.Site(t, s, 0, "Lidl Filiale")
	other := storetest.Site(t, s, 0, "Aldi Filiale")

	res, err := r.Resolve(ctx, emp.ID, other.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, FallbackHours, res.Hours)
	assert.False(t, res.IsSpecial)

	_, err = r.SetCustomerHours(ctx, site.CustomerID, 3, "")
	require.NoError(t, err)
	res, err = r.Resolve(ctx, emp.ID, site.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Hours)
	assert.False(t, res.IsSpecial)

	rate := 17.5
	rule, err := r.SaveSpecialRule(ctx, SpecialRuleInput{EmployeeID: emp.ID, CustomerID: site.CustomerID, SpecialHours: 2.5, SpecialRate: &rate, Note: "kurze Schicht"})
	require.NoError(t, err)
	res, err = r.Resolve(ctx, emp.ID, site.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, &Resolution{Hours: 2.5, Rate: 17.5, IsSpecial: true, Note: "kurze Schicht"}, res)

	require.NoError(t, r.DeactivateSpecialRule(ctx, rule.ID))
	res, err = r.Resolve(ctx, emp.ID, site.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Hours)

	again, err := r.SaveSpecialRule(ctx, SpecialRuleInput{EmployeeID: emp.ID, CustomerID: site.CustomerID, SpecialHours: 4})
	require.NoError(t, err)
	assert.Equal(t, rule.ID, again.ID)
	assert.True(t, again.Active)

	views, err := r.ListSpecialRules(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, emp.FullName(), views[0].EmployeeName)
	require.NotNil(t, views[0].StandardHours)
	assert.Equal(t, 3.0, *views[0].StandardHours)

	_, err = r.Resolve(ctx, 404, site.CustomerID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestSetCustomerHoursUpserts(t *testing.T) {
	ctx := context.Background()
	r, s := newResolver(t)
	site := storetest.Site(t, s, 0, "Hotel")

	_, err := r.SetCustomerHours(ctx, site.CustomerID, 5, "")
	require.NoError(t, err)
	_, err = r.SetCustomerHours(ctx, site.CustomerID, 6, "grund")
	require.NoError(t, err)

	h, err := s.GetCustomerHours(ctx, site.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, h.DefaultHours)
	assert.Equal(t, "grund", h.CleaningType)

	_, err = r.SetCustomerHours(ctx, 999, 5, "")
	assert.True(t, apperr.IsNotFound(err))
	_, err = r.SetCustomerHours(ctx, site.CustomerID, -1, "")
	assert.True(t, apperr.IsValidation(err))
}

func TestMinijobCheck(t *testing.T) {
	ctx := context.Background()
	r, s := newResolver(t)
	site := storetest.Site(t, s, 0, "Praxis")

	regular := storetest.Employee(t, s, 1, model.CategoryC)
	status, err := r.MinijobCheck(ctx, regular.ID, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, status.IsMinijob)

	mini := storetest.Employee(t, s, 2, model.CategoryC)
	mini.EmploymentType = model.EmploymentMinijob
	mini.MaxMonthlyAmount = 100
	require.NoError(t, s.SaveEmployee(ctx, mini))

	book := func(day, hours int, rate float64) *model.TimeEntry {
		in := time.Date(2025, 3, day, 6, 0, 0, 0, time.UTC)
		out := in.Add(time.Duration(hours) * time.Hour)
		e := &model.TimeEntry{EmployeeID: mini.ID, SiteID: site.ID, CheckIn: in, CheckOut: &out, HourlyRate: rate}
		require.NoError(t, s.CreateEntry(ctx, e))
		return e
	}

	testCases := []struct {
		name     string
		setup    func()
		amount   float64
		warning  bool
		critical bool
	}{
		{name: "below threshold", setup: func() { book(3, 4, 10) }, amount: 40},
		{name: "unpaid break is subtracted", setup: func() {
			e := book(4, 5, 10)
			end := e.CheckIn.Add(2*time.Hour + 30*time.Minute)
			require.NoError(t, s.CreateBreak(ctx, &model.BreakEntry{TimeEntryID: e.ID, Start: e.CheckIn.Add(2 * time.Hour), End: &end}))
		}, amount: 85},
		{name: "warning at ninety percent", setup: func() { book(5, 1, 7) }, amount: 92, warning: true},
		{name: "critical at cap", setup: func() { book(6, 1, 8) }, amount: 100, warning: true, critical: true},
		{name: "other month ignored", setup: func() { book(1, 3, 10); moveLast(t, s, mini.ID) }, amount: 100, warning: true, critical: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setup()
			status, err := r.MinijobCheck(ctx, mini.ID, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.True(t, status.IsMinijob)
			assert.Equal(t, 100.0, status.MaxAmount)
			assert.InDelta(t, tc.amount, status.CurrentAmount, 0.001)
			assert.Equal(t, tc.warning, status.Warning)
			assert.Equal(t, tc.critical, status.Critical)
		})
	}
}

// moveLast shifts the employee's newest entry into February.
func moveLast(t *testing.T, s store.Store, employeeID int64) {
	t.Helper()
	ctx := context.Background()
	entries, err := s.ListEntries(ctx, store.EntryFilter{EmployeeID: employeeID})
	require.NoError(t, err)
	e := entries[0]
	e.CheckIn = e.CheckIn.AddDate(0, -1, 0)
	out := e.CheckOut.AddDate(0, -1, 0)
	e.CheckOut = &out
	require.NoError(t, s.SaveEntry(ctx, &e))
}
