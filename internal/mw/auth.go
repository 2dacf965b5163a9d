package mw

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"zeiterfassung-backend/internal/model"
)

const actorKey = "actor"

// Claims are the bearer token claims. The subject carries the user id.
type Claims struct {
	Role       string `json:"role"`
	EmployeeID int64  `json:"employee_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the caller decoded by Auth.
func Actor(c *gin.Context) model.Actor {
	if v, ok := c.Get(actorKey); ok {
		return v.(model.Actor)
	}
	return model.Actor{}
}

// WithActor stores the caller on the context.
func WithActor(c *gin.Context, a model.Actor) {
	c.Set(actorKey, a)
}

// ParseActor validates an HS256 token and maps its claims onto an Actor.
func ParseActor(secret []byte, token string) (model.Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return model.Actor{}, fmt.Errorf("invalid token: %w", err)
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return model.Actor{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	role := claims.Role
	if role != model.RoleAdmin {
		role = model.RoleEmployee
	}
	return model.Actor{UserID: uid, EmployeeID: claims.EmployeeID, Role: role}, nil
}

// Auth requires a valid bearer token and stores the caller for the handlers.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		actor, err := ParseActor(key, strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		WithActor(c, actor)
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Actor(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}
