// Package storetest provides an in-memory SQLite store and fixtures for service tests.
package storetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zeiterfassung-backend/internal/model"
	"zeiterfassung-backend/internal/store"
)

var seq atomic.Int64

// NewDB opens a fresh migrated in-memory database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err, "failed to connect to the in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the shared in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// New returns a store backed by NewDB.
func New(t *testing.T) store.Store {
	t.Helper()
	return store.NewGormStore(NewDB(t))
}

// Employee inserts an active employee with the given category linked to userID.
func Employee(t *testing.T, s store.Store, userID int64, category model.Category) *model.Employee {
	t.Helper()
	uid := userID
	e := &model.Employee{
		UserID:      &uid,
		PersonalNr:  fmt.Sprintf("P%03d", userID),
		FirstName:   "Emp",
		LastName:    fmt.Sprintf("%d", userID),
		Category:    category,
		HourlyRate:  15,
		GPSRequired: category == model.CategoryC,
		Active:      true,
	}
	require.NoError(t, s.CreateEmployee(context.Background(), e))
	return e
}

// Site inserts an active site, creating its customer when customerID is zero.
func Site(t *testing.T, s store.Store, customerID int64, name string) *model.Site {
	t.Helper()
	ctx := context.Background()
	if customerID == 0 {
		c := &model.Customer{Name: "Kunde " + name, Active: true}
		require.NoError(t, s.CreateCustomer(ctx, c))
		customerID = c.ID
	}
	site := &model.Site{CustomerID: customerID, Name: name, RadiusM: 100, Active: true}
	require.NoError(t, s.CreateSite(ctx, site))
	return site
}

// SiteAt inserts an active geofenced site with a 100m radius and its own customer.
func SiteAt(t *testing.T, s store.Store, name string, lat, lng float64) *model.Site {
	t.Helper()
	ctx := context.Background()
	c := &model.Customer{Name: "Kunde " + name, Active: true}
	require.NoError(t, s.CreateCustomer(ctx, c))
	site := &model.Site{CustomerID: c.ID, Name: name, Lat: &lat, Lng: &lng, RadiusM: 100, Active: true}
	require.NoError(t, s.CreateSite(ctx, site))
	return site
}

// Shift inserts a normal shift from "HH:MM" boundaries.
func Shift(t *testing.T, s store.Store, employeeID, siteID int64, weekday int, start, end string) *model.Shift {
	t.Helper()
	from, err := model.Clock(start)
	require.NoError(t, err)
	to, err := model.Clock(end)
	require.NoError(t, err)
	sh := &model.Shift{
		EmployeeID:   employeeID,
		SiteID:       siteID,
		Weekday:      weekday,
		StartTime:    &from,
		EndTime:      &to,
		PlannedHours: float64(to-from) / 60,
		Status:       model.ShiftNormal,
	}
	require.NoError(t, s.CreateShift(context.Background(), sh))
	return sh
}
