package attendance

import (
	"context"
	"math"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/store"
)

// PositionCheck is the answer to "may I stamp here?".
type PositionCheck struct {
	Valid         bool    `json:"is_valid"`
	DistanceM     float64 `json:"distance_meters"`
	SiteName      string  `json:"object_name"`
	AllowedRadius int     `json:"allowed_radius"`
}

// CheckPosition measures gps against the site's geofence without stamping.
func (r *Recorder) CheckPosition(ctx context.Context, siteID int64, gps GPS) (*PositionCheck, error) {
	if err := gps.Validate(); err != nil {
		return nil, err
	}
	site, err := r.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !site.HasCoordinates() {
		return nil, apperr.Validation("site %s has no coordinates", site.Name)
	}
	d := DistanceM(gps, GPS{Lat: *site.Lat, Lng: *site.Lng})
	return &PositionCheck{
		Valid:         d <= float64(site.RadiusM),
		DistanceM:     math.Round(d*100) / 100,
		SiteName:      site.Name,
		AllowedRadius: site.RadiusM,
	}, nil
}

// DayStats summarises today's attendance for the admin dashboard.
type DayStats struct {
	Active     int     `json:"active_employees"`
	Paused     int     `json:"paused_employees"`
	Offline    int     `json:"offline_employees"`
	Total      int     `json:"total_employees"`
	HoursToday float64 `json:"total_hours_today"`
}

// Stats counts employees working now (open entry checked in today), those
// of them on a break, the remaining active employees, and hours checked in
// today with open entries measured up to now.
func (r *Recorder) Stats(ctx context.Context) (*DayStats, error) {
	now := r.clock.Now()
	from := clock.StartOfDay(now)
	to := from.AddDate(0, 0, 1)

	emps, err := r.store.ListEmployees(ctx, store.EmployeeFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	entries, err := r.store.ListEntries(ctx, store.EntryFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	st := &DayStats{Total: len(emps)}
	working := make(map[int64]bool)
	var seconds float64
	for _, e := range entries {
		seconds += e.Duration(now).Seconds()
		if !e.Open() || working[e.EmployeeID] {
			continue
		}
		working[e.EmployeeID] = true
		st.Active++
		_, err := r.store.OpenBreak(ctx, e.ID)
		switch {
		case err == nil:
			st.Paused++
		case !apperr.IsNotFound(err):
			return nil, err
		}
	}
	st.Offline = max(st.Total-st.Active, 0)
	st.HoursToday = math.Round(seconds/360) / 10
	return st, nil
}
