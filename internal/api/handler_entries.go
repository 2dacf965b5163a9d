package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/attendance"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/mw"
	"zeiterfassung-backend/internal/parse"
)

type stampRequest struct {
	SiteID int64    `json:"object_id"`
	Lat    *float64 `json:"gps_lat"`
	Lng    *float64 `json:"gps_lng"`
}

func (r stampRequest) gps() *attendance.GPS {
	if r.Lat == nil || r.Lng == nil {
		return nil
	}
	return &attendance.GPS{Lat: *r.Lat, Lng: *r.Lng}
}

// CheckIn handles POST /time-entries/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	var req stampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.SiteID <= 0 {
		badRequest(c, apperr.Validation("object_id is required"))
		return
	}
	ctx := c.Request.Context()
	actor := mw.Actor(c)
	entry, err := h.Recorder.CheckIn(ctx, actor.UserID, req.SiteID, req.gps())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.checkCompliance(ctx, entry)
	c.JSON(http.StatusOK, entry)
}

// checkCompliance compares a fresh entry with today's plan. A mismatch only
// raises a warning; the stamp stands.
func (h *Handler) checkCompliance(ctx context.Context, entry *model.TimeEntry) {
	if _, err := h.Engine.CheckScheduleCompliance(ctx, entry.EmployeeID, entry.SiteID); err != nil {
		h.log.WithError(err).WithField("entry_id", entry.ID).Warn("schedule compliance check failed")
	}
}

// CheckOut handles POST /time-entries/check-out.
func (h *Handler) CheckOut(c *gin.Context) {
	var req stampRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	entry, err := h.Recorder.CheckOut(c.Request.Context(), mw.Actor(c).UserID, req.gps())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// SwitchSite handles POST /time-entries/switch-object.
func (h *Handler) SwitchSite(c *gin.Context) {
	var req stampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.SiteID <= 0 {
		badRequest(c, apperr.Validation("object_id is required"))
		return
	}
	ctx := c.Request.Context()
	closed, opened, err := h.Recorder.SwitchSite(ctx, mw.Actor(c).UserID, req.SiteID, req.gps())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.checkCompliance(ctx, opened)
	c.JSON(http.StatusOK, gin.H{"closed": closed, "entry": opened})
}

// CurrentEntry handles GET /time-entries/current.
func (h *Handler) CurrentEntry(c *gin.Context) {
	st, err := h.Recorder.CurrentStatus(c.Request.Context(), mw.Actor(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// History handles GET /time-entries/history?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Both bounds are optional; to is inclusive.
func (h *Handler) History(c *gin.Context) {
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		d, err := parse.Date(v)
		if err != nil {
			badRequest(c, err)
			return
		}
		d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, h.Location)
		from = &d
	}
	if v := c.Query("to"); v != "" {
		d, err := parse.Date(v)
		if err != nil {
			badRequest(c, err)
			return
		}
		d = time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, h.Location)
		to = &d
	}
	entries, err := h.Recorder.History(c.Request.Context(), mw.Actor(c).UserID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
}

// QuickBook handles POST /time-entries/war-anwesend.
func (h *Handler) QuickBook(c *gin.Context) {
	var req attendance.QuickBookInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Recorder.QuickBook(c.Request.Context(), mw.Actor(c).UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// StartBreak handles POST /breaks/start.
func (h *Handler) StartBreak(c *gin.Context) {
	var req struct {
		Paid bool `json:"is_paid"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	b, err := h.Recorder.StartBreak(c.Request.Context(), mw.Actor(c).UserID, req.Paid)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// EndBreak handles POST /breaks/end.
func (h *Handler) EndBreak(c *gin.Context) {
	var req struct {
		BreakID int64 `json:"break_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.Recorder.EndBreak(c.Request.Context(), mw.Actor(c).UserID, req.BreakID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CurrentBreak handles GET /breaks/current.
func (h *Handler) CurrentBreak(c *gin.Context) {
	b, err := h.Recorder.CurrentBreak(c.Request.Context(), mw.Actor(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active_break": b})
}
