package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/parse"
	"zeiterfassung-backend/internal/store"
)

// ConflictTimeOverlap marks two shifts of one employee that overlap on a weekday.
const ConflictTimeOverlap = "time_overlap"

// ConflictShift describes one side of a conflict.
type ConflictShift struct {
	ShiftID  int64  `json:"shift_id"`
	SiteID   int64  `json:"object_id"`
	SiteName string `json:"object_name"`
	Time     string `json:"time"`
}

// Conflict is a detected overlap between two adjacent shifts.
type Conflict struct {
	Type         string        `json:"type"`
	EmployeeID   int64         `json:"employee_id"`
	EmployeeName string        `json:"employee"`
	Weekday      int           `json:"weekday_index"`
	WeekdayName  string        `json:"weekday"`
	Shift1       ConflictShift `json:"shift1"`
	Shift2       ConflictShift `json:"shift2"`
}

// names resolves display names. Lookup failures fall back to generic labels.
type names struct {
	employees map[int64]string
	sites     map[int64]string
}

func (s *Service) loadNames(ctx context.Context) names {
	n := names{employees: map[int64]string{}, sites: map[int64]string{}}
	if emps, err := s.store.ListEmployees(ctx, store.EmployeeFilter{}); err != nil {
		s.log.WithError(err).Warn("could not load employee names")
	} else {
		for _, e := range emps {
			n.employees[e.ID] = e.FullName()
		}
	}
	if sites, err := s.store.ListSites(ctx, nil); err != nil {
		s.log.WithError(err).Warn("could not load site names")
	} else {
		for _, site := range sites {
			n.sites[site.ID] = site.Name
		}
	}
	return n
}

func (n names) employee(id int64) string {
	if name, ok := n.employees[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Mitarbeiter %d", id)
}

func (n names) site(id int64) string {
	if name, ok := n.sites[id]; ok {
		return name
	}
	return fmt.Sprintf("Objekt %d", id)
}

// DetectConflicts groups shifts by (employee, weekday), sorts each group by
// start (missing starts first) and flags every adjacent pair where the earlier
// shift ends after the next one starts. Touching boundaries do not overlap.
func (s *Service) DetectConflicts(ctx context.Context) ([]Conflict, error) {
	shifts, err := s.store.ListShifts(ctx, store.ShiftFilter{})
	if err != nil {
		return nil, err
	}
	return findOverlaps(shifts, s.loadNames(ctx)), nil
}

type groupKey struct {
	employeeID int64
	weekday    int
}

// findOverlaps is the pure part of DetectConflicts.
func findOverlaps(shifts []model.Shift, n names) []Conflict {
	groups := map[groupKey][]model.Shift{}
	var order []groupKey
	for _, sh := range shifts {
		k := groupKey{sh.EmployeeID, sh.Weekday}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], sh)
	}

	conflicts := []Conflict{}
	for _, k := range order {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return startOf(group[i]) < startOf(group[j])
		})
		for i := 0; i+1 < len(group); i++ {
			prev, next := group[i], group[i+1]
			if prev.EndTime == nil || next.StartTime == nil {
				continue
			}
			if *prev.EndTime <= *next.StartTime {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Type:         ConflictTimeOverlap,
				EmployeeID:   k.employeeID,
				EmployeeName: n.employee(k.employeeID),
				Weekday:      k.weekday,
				WeekdayName:  parse.WeekdayName(k.weekday),
				Shift1:       ConflictShift{ShiftID: prev.ID, SiteID: prev.SiteID, SiteName: n.site(prev.SiteID), Time: prev.Range()},
				Shift2:       ConflictShift{ShiftID: next.ID, SiteID: next.SiteID, SiteName: n.site(next.SiteID), Time: next.Range()},
			})
		}
	}
	return conflicts
}

func startOf(sh model.Shift) int {
	if sh.StartTime == nil {
		return -1
	}
	return int(*sh.StartTime)
}

// ShiftView is a shift with display names.
type ShiftView struct {
	model.Shift
	EmployeeName string `json:"employee_name"`
	SiteName     string `json:"object_name"`
}

// DayView lists the shifts of one day of a week.
type DayView struct {
	Date         string      `json:"date"`
	Weekday      string      `json:"weekday"`
	WeekdayIndex int         `json:"weekday_index"`
	Shifts       []ShiftView `json:"schedules"`
}

// WeekView is the plan rendered onto the calendar dates of one week.
type WeekView struct {
	WeekStart  string    `json:"week_start"`
	WeekNumber int       `json:"week_number"`
	Year       int       `json:"year"`
	Days       []DayView `json:"days"`
}

// Week renders the plan for the week weekOffset weeks from the current one.
func (s *Service) Week(ctx context.Context, weekOffset int) (*WeekView, error) {
	today := clock.StartOfDay(s.clock.Now())
	monday := today.AddDate(0, 0, -parse.WeekdayOf(today)+7*weekOffset)

	shifts, err := s.store.ListShifts(ctx, store.ShiftFilter{})
	if err != nil {
		return nil, err
	}
	n := s.loadNames(ctx)

	year, week := monday.ISOWeek()
	view := &WeekView{WeekStart: monday.Format(time.DateOnly), WeekNumber: week, Year: year}
	for i := 0; i < 7; i++ {
		day := DayView{
			Date:         monday.AddDate(0, 0, i).Format(time.DateOnly),
			Weekday:      parse.WeekdayName(i),
			WeekdayIndex: i,
			Shifts:       []ShiftView{},
		}
		for _, sh := range shifts {
			if sh.Weekday == i {
				day.Shifts = append(day.Shifts, ShiftView{Shift: sh, EmployeeName: n.employee(sh.EmployeeID), SiteName: n.site(sh.SiteID)})
			}
		}
		view.Days = append(view.Days, day)
	}
	return view, nil
}

// Today returns the shifts of the employee on the current weekday.
func (s *Service) Today(ctx context.Context, employeeID int64) ([]model.Shift, error) {
	return s.store.ListShifts(ctx, store.ShiftFilter{
		EmployeeID: employeeID,
		Weekdays:   []int{parse.WeekdayOf(s.clock.Now())},
	})
}

// HasWorkToday reports whether the employee owes a shift today.
func (s *Service) HasWorkToday(ctx context.Context, employeeID int64) (bool, error) {
	shifts, err := s.Expected(ctx, nil, parse.WeekdayOf(s.clock.Now()), employeeID)
	if err != nil {
		return false, err
	}
	return len(shifts) > 0, nil
}

// StampableSites lists the sites an employee may stamp at.
type StampableSites struct {
	Category model.Category `json:"category"`
	Sites    []model.Site   `json:"objects"`
}

// SitesFor returns the sites of the employee's shifts. Category A employees see
// today only; B and C get a buffer from yesterday to tomorrow.
func (s *Service) SitesFor(ctx context.Context, employeeID int64) (*StampableSites, error) {
	emp, err := s.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	today := parse.WeekdayOf(s.clock.Now())
	days := []int{today}
	if emp.EffectiveCategory() != model.CategoryA {
		days = []int{(today + 6) % 7, today, (today + 1) % 7}
	}

	shifts, err := s.store.ListShifts(ctx, store.ShiftFilter{EmployeeID: employeeID, Weekdays: days})
	if err != nil {
		return nil, err
	}
	seen := map[int64]bool{}
	var ids []int64
	for _, sh := range shifts {
		if !seen[sh.SiteID] {
			seen[sh.SiteID] = true
			ids = append(ids, sh.SiteID)
		}
	}

	out := &StampableSites{Category: emp.EffectiveCategory(), Sites: []model.Site{}}
	if len(ids) == 0 {
		return out, nil
	}
	if out.Sites, err = s.store.ListSites(ctx, ids); err != nil {
		return nil, err
	}
	return out, nil
}
