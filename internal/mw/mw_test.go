package mw

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"zeiterfassung-backend/internal/model"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func sign(t *testing.T, claims Claims, key string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", Auth(secret), func(c *gin.Context) { c.JSON(http.StatusOK, Actor(c)) })
	r.GET("/admin", Auth(secret), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	testCases := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "missing token", path: "/me", wantCode: http.StatusUnauthorized},
		{name: "wrong secret", path: "/me", header: "Bearer " + sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "4"}}, "other"), wantCode: http.StatusUnauthorized},
		{name: "expired", path: "/me", header: "Bearer " + sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "4", ExpiresAt: past}}, secret), wantCode: http.StatusUnauthorized},
		{name: "non numeric subject", path: "/me", header: "Bearer " + sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "anna"}}, secret), wantCode: http.StatusUnauthorized},
		{
			name:     "employee",
			path:     "/me",
			header:   "Bearer " + sign(t, Claims{Role: "superuser", EmployeeID: 9, RegisteredClaims: jwt.RegisteredClaims{Subject: "4", ExpiresAt: future}}, secret),
			wantCode: http.StatusOK,
			wantBody: `{"user_id":4,"employee_id":9,"role":"employee"}`,
		},
		{name: "employee on admin route", path: "/admin", header: "Bearer " + sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "4"}}, secret), wantCode: http.StatusForbidden},
		{name: "admin", path: "/admin", header: "Bearer " + sign(t, Claims{Role: model.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}, secret), wantCode: http.StatusNoContent},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.wantCode, w.Code)
			if tc.wantBody != "" {
				assert.JSONEq(t, tc.wantBody, w.Body.String())
			}
		})
	}
}

func TestCacheAndInvalidate(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0
	r := gin.New()
	r.Use(Invalidate(store))
	r.GET("/week", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, strconv.Itoa(calls))
	})
	r.POST("/week", func(c *gin.Context) { c.Status(http.StatusCreated) })

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/week", nil))
		return w
	}

	assert.Equal(t, "1", get().Body.String())
	hit := get()
	assert.Equal(t, "1", hit.Body.String())
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/week", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, "2", get().Body.String(), "write flushes the cache")
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimiter(rate.Limit(1), 2, "X-Forwarded-For"), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("1.1.1.1"))
	assert.Equal(t, http.StatusOK, hit("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("1.1.1.1"))
	assert.Equal(t, http.StatusOK, hit("2.2.2.2"), "limits are per address")
}

func TestClientLimiter_DropsIdleClients(t *testing.T) {
	now := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	l := NewClientLimiter(rate.Limit(1), 1, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))

	now = now.Add(2 * time.Minute)
	assert.True(t, l.Allow("2.2.2.2"))
	assert.Equal(t, 1, l.Len(), "idle bucket was dropped")
}
