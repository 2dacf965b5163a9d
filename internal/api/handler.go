package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/internal/apperr"
	"zeiterfassung-backend/internal/attendance"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/correction"
	"zeiterfassung-backend/internal/mw"
	"zeiterfassung-backend/internal/rates"
	"zeiterfassung-backend/internal/reconcile"
	"zeiterfassung-backend/internal/schedule"
	"zeiterfassung-backend/internal/store"
)

// Services bundles what the handlers call into.
type Services struct {
	Store       store.Store
	Clock       clock.Clock
	Location    *time.Location
	Recorder    *attendance.Recorder
	Schedule    *schedule.Service
	Engine      *reconcile.Engine
	Corrections *correction.Workflow
	Rates       *rates.Resolver
	VAPIDKey    string
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Services
	log logrus.FieldLogger
}

// NewHandler creates a new API handler.
func NewHandler(s Services, log logrus.FieldLogger) *Handler {
	if s.Location == nil {
		s.Location = time.UTC
	}
	return &Handler{Services: s, log: log.WithField("component", "api")}
}

// status maps an error kind onto an HTTP status.
func status(err error) int {
	switch {
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case apperr.IsInvalidState(err):
		return http.StatusConflict
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": ...}. Internal errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	code := status(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// employeeID resolves the caller's employee profile.
func (h *Handler) employeeID(c *gin.Context) (int64, error) {
	actor := mw.Actor(c)
	if actor.EmployeeID != 0 {
		return actor.EmployeeID, nil
	}
	emp, err := h.Store.GetEmployeeByUser(c.Request.Context(), actor.UserID)
	if err != nil {
		return 0, err
	}
	return emp.ID, nil
}

// Health reports whether the database is reachable.
func (h *Handler) Health(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		h.log.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": h.Clock.Now()})
}
