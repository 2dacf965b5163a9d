package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"zeiterfassung-backend/config"
	"zeiterfassung-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.Use(rateLimiter)
	v1.GET("/vapid_public_key", h.GetVAPIDPublicKey)

	authed := v1.Group("")
	authed.Use(mw.Auth(cfg.JWTSecret), mw.Invalidate(cacheStore))
	{
		entries := authed.Group("/time-entries")
		entries.POST("/check-in", h.CheckIn)
		entries.POST("/check-out", h.CheckOut)
		entries.POST("/switch-object", h.SwitchSite)
		entries.GET("/current", h.CurrentEntry)
		entries.GET("/history", h.History)
		entries.POST("/war-anwesend", h.QuickBook)

		breaks := authed.Group("/breaks")
		breaks.POST("/start", h.StartBreak)
		breaks.POST("/end", h.EndBreak)
		breaks.GET("/current", h.CurrentBreak)

		authed.GET("/schedule/today", h.MySchedule)
		authed.GET("/schedule/my-objects", h.MySites)
		authed.GET("/employees/my-category", h.MyCategory)
		authed.GET("/objects", h.ListSites)
		authed.POST("/objects/validate-gps", h.ValidateGPS)

		authed.POST("/corrections", h.SubmitCorrection)
		authed.GET("/corrections", h.ListCorrections)
		authed.PUT("/corrections/:id", h.DecideCorrection)

		authed.GET("/warnings/my", h.MyWarnings)
	}

	admin := authed.Group("")
	admin.Use(mw.RequireAdmin())
	{
		admin.GET("/warnings", h.ListWarnings)
		admin.PUT("/warnings/:id/resolve", h.ResolveWarning)
		admin.POST("/warnings/check-all", h.CheckAll)

		admin.PUT("/subscriptions", h.PutSubscription)
		admin.DELETE("/subscriptions", h.DeleteSubscription)

		sched := admin.Group("/admin/schedules")
		sched.GET("", h.ListShifts)
		sched.POST("", h.CreateShift)
		sched.PUT("/:id", h.UpdateShift)
		sched.DELETE("/:id", h.DeleteShift)
		sched.GET("/week", caching, h.Week)
		sched.GET("/conflicts", caching, h.Conflicts)
		sched.POST("/bulk-update", h.BulkUpdate)
		sched.POST("/copy-week", h.CopyWeek)
		sched.POST("/replacement", h.Replacement)
		sched.POST("/quick-assign", h.QuickAssign)

		hours := admin.Group("/admin/hours")
		hours.PUT("/customer-hours", h.SetCustomerHours)
		hours.GET("/special-rules", caching, h.ListSpecialRules)
		hours.POST("/special-rules", h.SaveSpecialRule)
		hours.DELETE("/special-rules/:id", h.DeactivateSpecialRule)
		hours.GET("/calculate/:employee_id/:customer_id", h.CalculateHours)
		hours.GET("/rate/:employee_id/:object_id", h.SiteRate)
		hours.GET("/minijob-check/:employee_id", h.MinijobCheck)

		admin.POST("/admin/customers", h.CreateCustomer)
		admin.POST("/admin/objects", h.CreateSite)
		admin.GET("/admin/employees", h.ListEmployees)
		admin.GET("/admin/dashboard/stats", h.DashboardStats)
		admin.PUT("/admin/employees/:id/category", h.UpdateCategory)
	}

	return r
}
