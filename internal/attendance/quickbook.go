package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/parse"
	"zeiterfassung-backend/internal/rates"
	"zeiterfassung-backend/internal/store"
)

// QuickBookInput is a one-tap "was there" confirmation of a category B employee.
type QuickBookInput struct {
	SiteID      int64  `json:"object_id" binding:"required"`
	ServiceType string `json:"service_type"`
	PartnerID   *int64 `json:"partner_id,omitempty"`
}

// QuickBookResult reports the booked span.
type QuickBookResult struct {
	Hours   float64           `json:"scheduled_hours"`
	CheckIn time.Time         `json:"check_in"`
	Out     time.Time         `json:"check_out"`
	Entries []model.TimeEntry `json:"entries"`
}

// QuickBook books today's planned hours at a site as a closed manual entry
// starting at the configured day start. A partner employee gets the same
// entry unless they already booked the site today.
func (r *Recorder) QuickBook(ctx context.Context, userID int64, in QuickBookInput) (*QuickBookResult, error) {
	now := r.clock.Now()
	dayStart := clock.StartOfDay(now)
	dayEnd := dayStart.AddDate(0, 0, 1)
	service := in.ServiceType
	if service == "" {
		service = model.DefaultServiceType
	}

	var res *QuickBookResult
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		emp, err := tx.GetEmployeeByUser(ctx, userID)
		if err != nil {
			return err
		}
		if emp.EffectiveCategory() != model.CategoryB {
			return apperr.InvalidState("quick booking is only available to category B employees")
		}
		site, err := tx.GetSite(ctx, in.SiteID)
		if err != nil {
			return err
		}
		booked, err := bookedToday(ctx, tx, emp.ID, site.ID, dayStart, dayEnd)
		if err != nil {
			return err
		}
		if booked {
			return apperr.InvalidState("hours for %s already booked today", site.Name)
		}

		hours := r.cfg.QuickBookHours
		shifts, err := tx.ListShifts(ctx, store.ShiftFilter{EmployeeID: emp.ID, SiteID: site.ID, Weekdays: []int{parse.WeekdayOf(now)}})
		if err != nil {
			return err
		}
		if len(shifts) > 0 && shifts[0].PlannedHours > 0 {
			hours = shifts[0].PlannedHours
		}

		checkIn := clock.At(now, r.cfg.DayStartMinute)
		checkOut := checkIn.Add(time.Duration(hours * float64(time.Hour)))
		note := fmt.Sprintf("War anwesend (Kategorie B) - %s", service)
		res = &QuickBookResult{Hours: hours, CheckIn: checkIn, Out: checkOut}

		book := func(e *model.Employee, note string) error {
			out := checkOut
			entry := model.TimeEntry{
				EmployeeID:  e.ID,
				SiteID:      site.ID,
				CheckIn:     checkIn,
				CheckOut:    &out,
				IsManual:    true,
				Notes:       note,
				ServiceType: service,
				HourlyRate:  rates.RateFor(*e, site.Name),
			}
			if err := tx.CreateEntry(ctx, &entry); err != nil {
				return err
			}
			res.Entries = append(res.Entries, entry)
			return nil
		}
		if err := book(emp, note); err != nil {
			return err
		}

		if in.PartnerID == nil || *in.PartnerID == emp.ID {
			return nil
		}
		partner, err := tx.GetEmployee(ctx, *in.PartnerID)
		if err != nil {
			return err
		}
		if booked, err = bookedToday(ctx, tx, partner.ID, site.ID, dayStart, dayEnd); err != nil || booked {
			return err
		}
		return book(partner, note+" - Partner von "+emp.FirstName)
	})
	if err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"user_id": userID, "object_id": in.SiteID, "hours": res.Hours, "entries": len(res.Entries)}).Info("quick booking")
	return res, nil
}

func bookedToday(ctx context.Context, tx store.Store, employeeID, siteID int64, from, to time.Time) (bool, error) {
	entries, err := tx.ListEntries(ctx, store.EntryFilter{EmployeeID: employeeID, SiteID: siteID, From: &from, To: &to})
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}
