package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/internal/attendance"
	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/store"
)

// ListSites handles GET /objects.
func (h *Handler) ListSites(c *gin.Context) {
	sites, err := h.Store.ListSites(c.Request.Context(), nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sites)
}

// ValidateGPS handles POST /objects/validate-gps.
func (h *Handler) ValidateGPS(c *gin.Context) {
	var req struct {
		SiteID int64    `json:"object_id" binding:"required"`
		Lat    *float64 `json:"current_lat" binding:"required"`
		Lng    *float64 `json:"current_lng" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Recorder.CheckPosition(c.Request.Context(), req.SiteID, attendance.GPS{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DashboardStats handles GET /admin/dashboard/stats.
func (h *Handler) DashboardStats(c *gin.Context) {
	st, err := h.Recorder.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// CreateCustomer handles POST /admin/customers.
func (h *Handler) CreateCustomer(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cust := &model.Customer{Name: req.Name, Active: true}
	if err := h.Store.CreateCustomer(c.Request.Context(), cust); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cust)
}

// CreateSite handles POST /admin/objects.
func (h *Handler) CreateSite(c *gin.Context) {
	var req struct {
		CustomerID int64    `json:"customer_id" binding:"required"`
		Name       string   `json:"name" binding:"required"`
		Address    string   `json:"address"`
		Lat        *float64 `json:"lat" binding:"omitempty,gte=-90,lte=90"`
		Lng        *float64 `json:"lng" binding:"omitempty,gte=-180,lte=180"`
		RadiusM    int      `json:"radius_m" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.RadiusM == 0 {
		req.RadiusM = 100
	}
	ctx := c.Request.Context()
	site := &model.Site{
		CustomerID: req.CustomerID,
		Name:       req.Name,
		Address:    req.Address,
		Lat:        req.Lat,
		Lng:        req.Lng,
		RadiusM:    req.RadiusM,
		Active:     true,
	}
	err := h.Store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetCustomer(ctx, req.CustomerID); err != nil {
			return err
		}
		return tx.CreateSite(ctx, site)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, site)
}

// ListEmployees handles GET /admin/employees?category=.
func (h *Handler) ListEmployees(c *gin.Context) {
	emps, err := h.Store.ListEmployees(c.Request.Context(), store.EmployeeFilter{
		Category:   c.Query("category"),
		ActiveOnly: c.Query("active_only") == "true",
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, emps)
}

// UpdateCategory handles PUT /admin/employees/:id/category.
func (h *Handler) UpdateCategory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Category    model.Category `json:"category" binding:"required,oneof=A B C"`
		GPSRequired *bool          `json:"gps_required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	var emp *model.Employee
	err := h.Store.Transaction(ctx, func(tx store.Store) error {
		var err error
		if emp, err = tx.GetEmployee(ctx, id); err != nil {
			return err
		}
		emp.Category = req.Category
		if req.GPSRequired != nil {
			emp.GPSRequired = *req.GPSRequired
		}
		return tx.SaveEmployee(ctx, emp)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.WithFields(logrus.Fields{"employee_id": id, "category": req.Category}).Info("employee category changed")
	c.JSON(http.StatusOK, emp)
}

// MyCategory handles GET /employees/my-category.
func (h *Handler) MyCategory(c *gin.Context) {
	empID, err := h.employeeID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	emp, err := h.Store.GetEmployee(c.Request.Context(), empID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": emp.EffectiveCategory(), "gps_required": emp.GPSRequired})
}
