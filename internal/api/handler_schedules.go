package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/schedule"
	"zeiterfassung-backend/internal/store"
)

func queryID(c *gin.Context, name string) (int64, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// ListShifts handles GET /admin/schedules?employee_id=&object_id=&weekday=.
func (h *Handler) ListShifts(c *gin.Context) {
	var f store.ShiftFilter
	var ok bool
	if f.EmployeeID, ok = queryID(c, "employee_id"); !ok {
		return
	}
	if f.SiteID, ok = queryID(c, "object_id"); !ok {
		return
	}
	if v := c.Query("weekday"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 || d > 6 {
			badRequest(c, apperr.Validation("weekday must be 0..6"))
			return
		}
		f.Weekdays = []int{d}
	}
	shifts, err := h.Schedule.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, shifts)
}

// CreateShift handles POST /admin/schedules.
func (h *Handler) CreateShift(c *gin.Context) {
	var p schedule.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	sh, err := h.Schedule.Create(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sh)
}

// UpdateShift handles PUT /admin/schedules/:id.
func (h *Handler) UpdateShift(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var p schedule.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	sh, err := h.Schedule.Update(c.Request.Context(), id, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

// DeleteShift handles DELETE /admin/schedules/:id.
func (h *Handler) DeleteShift(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Schedule.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Week handles GET /admin/schedules/week?week_offset=N.
func (h *Handler) Week(c *gin.Context) {
	offset := 0
	if v := c.Query("week_offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, apperr.Validation("week_offset must be an integer"))
			return
		}
		offset = n
	}
	view, err := h.Schedule.Week(c.Request.Context(), offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// BulkUpdate handles POST /admin/schedules/bulk-update. Per-item failures are
// reported in the body, the request itself succeeds.
func (h *Handler) BulkUpdate(c *gin.Context) {
	var req struct {
		Schedules []json.RawMessage `json:"schedules"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	// Items that do not decode are reported in place; the rest go through as one batch.
	results := make([]schedule.BulkResult, len(req.Schedules))
	patches := make([]schedule.Patch, 0, len(req.Schedules))
	slots := make([]int, 0, len(req.Schedules))
	for i, raw := range req.Schedules {
		var p schedule.Patch
		if err := json.Unmarshal(raw, &p); err != nil {
			results[i] = schedule.BulkResult{Status: schedule.BulkInvalid, Error: err.Error()}
			continue
		}
		patches = append(patches, p)
		slots = append(slots, i)
	}
	for j, r := range h.Schedule.BulkUpdate(c.Request.Context(), patches) {
		results[slots[j]] = r
	}

	updated := 0
	for _, r := range results {
		if r.Status == schedule.BulkUpdated || r.Status == schedule.BulkCreated {
			updated++
		}
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated, "results": results})
}

// CopyWeek handles POST /admin/schedules/copy-week.
func (h *Handler) CopyWeek(c *gin.Context) {
	var req struct {
		SourceWeek string `json:"source_week" binding:"required"`
		TargetWeek string `json:"target_week" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.Schedule.CopyWeek(c.Request.Context(), req.SourceWeek, req.TargetWeek)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"copied": n})
}

// Replacement handles POST /admin/schedules/replacement.
func (h *Handler) Replacement(c *gin.Context) {
	var req struct {
		OriginalID            int64  `json:"original_schedule_id" binding:"required"`
		ReplacementEmployeeID int64  `json:"replacement_employee_id" binding:"required"`
		Reason                string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	original, replacement, err := h.Schedule.CreateReplacement(c.Request.Context(), req.OriginalID, req.ReplacementEmployeeID, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"original": original, "replacement": replacement})
}

// QuickAssign handles POST /admin/schedules/quick-assign.
func (h *Handler) QuickAssign(c *gin.Context) {
	var req schedule.QuickAssignInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sh, created, err := h.Schedule.QuickAssign(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	c.JSON(code, gin.H{"schedule": sh, "created": created})
}

// Conflicts handles GET /admin/schedules/conflicts.
func (h *Handler) Conflicts(c *gin.Context) {
	conflicts, err := h.Schedule.DetectConflicts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts, "total": len(conflicts)})
}

// MySchedule handles GET /schedule/today.
func (h *Handler) MySchedule(c *gin.Context) {
	empID, err := h.employeeID(c)
	if apperr.IsNotFound(err) {
		c.JSON(http.StatusOK, gin.H{"schedules": []any{}, "has_work_today": false})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	shifts, err := h.Schedule.Today(ctx, empID)
	if err != nil {
		h.fail(c, err)
		return
	}
	work, err := h.Schedule.HasWorkToday(ctx, empID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": shifts, "has_work_today": work})
}

// MySites handles GET /schedule/my-objects.
func (h *Handler) MySites(c *gin.Context) {
	empID, err := h.employeeID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	sites, err := h.Schedule.SitesFor(c.Request.Context(), empID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sites)
}
