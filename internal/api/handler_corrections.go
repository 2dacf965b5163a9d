package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"zeiterfassung-backend/internal/correction"
	"zeiterfassung-backend/internal/mw"
	"zeiterfassung-backend/internal/reconcile"
)

// SubmitCorrection handles POST /corrections.
func (h *Handler) SubmitCorrection(c *gin.Context) {
	var req correction.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cr, err := h.Corrections.Submit(c.Request.Context(), mw.Actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cr)
}

// ListCorrections handles GET /corrections?status=.
func (h *Handler) ListCorrections(c *gin.Context) {
	list, err := h.Corrections.List(c.Request.Context(), mw.Actor(c), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// DecideCorrection handles PUT /corrections/:id with {"status", "admin_response"}.
func (h *Handler) DecideCorrection(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status        string `json:"status" binding:"required"`
		AdminResponse string `json:"admin_response"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cr, err := h.Corrections.Decide(c.Request.Context(), mw.Actor(c), id, req.Status, req.AdminResponse)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cr)
}

// ListWarnings handles GET /warnings?unresolved_only=&offset=&limit=.
func (h *Handler) ListWarnings(c *gin.Context) {
	unresolved := c.Query("unresolved_only") == "true"
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(reconcile.DefaultWarningLimit)))
	ws, err := h.Engine.ListWarnings(c.Request.Context(), mw.Actor(c), unresolved, offset, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// MyWarnings handles GET /warnings/my.
func (h *Handler) MyWarnings(c *gin.Context) {
	ws, err := h.Engine.MyWarnings(c.Request.Context(), mw.Actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// ResolveWarning handles PUT /warnings/:id/resolve.
func (h *Handler) ResolveWarning(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	w, err := h.Engine.ResolveWarning(c.Request.Context(), mw.Actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// CheckAll handles POST /warnings/check-all.
func (h *Handler) CheckAll(c *gin.Context) {
	res, err := h.Engine.RunAll(c.Request.Context(), h.Clock.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
