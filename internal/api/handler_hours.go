package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/rates"
)

// SetCustomerHours handles PUT /admin/hours/customer-hours.
func (h *Handler) SetCustomerHours(c *gin.Context) {
	var req struct {
		CustomerID   int64   `json:"customer_id" binding:"required"`
		DefaultHours float64 `json:"default_hours" binding:"gte=0"`
		CleaningType string  `json:"cleaning_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ch, err := h.Rates.SetCustomerHours(c.Request.Context(), req.CustomerID, req.DefaultHours, req.CleaningType)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// ListSpecialRules handles GET /admin/hours/special-rules.
func (h *Handler) ListSpecialRules(c *gin.Context) {
	rules, err := h.Rates.ListSpecialRules(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// SaveSpecialRule handles POST /admin/hours/special-rules.
func (h *Handler) SaveSpecialRule(c *gin.Context) {
	var req rates.SpecialRuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rule, err := h.Rates.SaveSpecialRule(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeactivateSpecialRule handles DELETE /admin/hours/special-rules/:id.
func (h *Handler) DeactivateSpecialRule(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Rates.DeactivateSpecialRule(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CalculateHours handles GET /admin/hours/calculate/:employee_id/:customer_id.
func (h *Handler) CalculateHours(c *gin.Context) {
	empID, ok := idParam(c, "employee_id")
	if !ok {
		return
	}
	custID, ok := idParam(c, "customer_id")
	if !ok {
		return
	}
	res, err := h.Rates.Resolve(c.Request.Context(), empID, custID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SiteRate handles GET /admin/hours/rate/:employee_id/:object_id.
func (h *Handler) SiteRate(c *gin.Context) {
	empID, ok := idParam(c, "employee_id")
	if !ok {
		return
	}
	siteID, ok := idParam(c, "object_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	emp, err := h.Store.GetEmployee(ctx, empID)
	if err != nil {
		h.fail(c, err)
		return
	}
	rate, err := h.Rates.RateForSite(ctx, *emp, siteID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employee_id": empID, "object_id": siteID, "rate": rate})
}

// MinijobCheck handles GET /admin/hours/minijob-check/:employee_id?month=YYYY-MM.
func (h *Handler) MinijobCheck(c *gin.Context) {
	empID, ok := idParam(c, "employee_id")
	if !ok {
		return
	}
	month := h.Clock.Now()
	if v := c.Query("month"); v != "" {
		m, err := time.ParseInLocation("2006-01", v, h.Location)
		if err != nil {
			badRequest(c, apperr.Validation("month must be YYYY-MM"))
			return
		}
		month = m
	}
	st, err := h.Rates.MinijobCheck(c.Request.Context(), empID, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
