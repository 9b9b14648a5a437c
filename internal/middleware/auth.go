package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/services"
)

const (
	userKey   = "user"
	userIDKey = "userID"
)

// UserLookup resolves the identity a credential names
type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// AuthMiddleware contains the auth service for token validation
type AuthMiddleware struct {
	authService *services.AuthService
	users       UserLookup
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(authService *services.AuthService, users UserLookup) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		users:       users,
	}
}

// AuthRequired is a middleware that checks for a valid bearer token and
// attaches the resolved user to the context
func (m *AuthMiddleware) AuthRequired() gin.HandlerFunc {
	return m.authenticate(false)
}

// WebSocketAuth is AuthRequired that also accepts ?token= for clients
// that cannot set headers on the upgrade request
func (m *AuthMiddleware) WebSocketAuth() gin.HandlerFunc {
	return m.authenticate(true)
}

func (m *AuthMiddleware) authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c)
		if token == "" && allowQuery {
			if q := strings.TrimSpace(c.Query("token")); q != "" {
				token, msg = q, ""
			}
		}
		if token == "" {
			abortWithMessage(c, http.StatusUnauthorized, msg)
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			abortWithMessage(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := m.users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				abortWithMessage(c, http.StatusUnauthorized, "User no longer exists")
				return
			}
			c.Error(err)
			abortWithMessage(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization header required"
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "Invalid authorization header format"
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "Token required"
	}

	return token, ""
}

// RequireRole is the single capability check: no identity is 401, any
// other role is 403
func (m *AuthMiddleware) RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortWithMessage(c, http.StatusUnauthorized, "User not authenticated")
			return
		}

		if !user.HasRole(role) {
			abortWithMessage(c, http.StatusForbidden, "Access denied: "+string(role)+"s only")
			return
		}

		c.Next()
	}
}

// FarmerOnly admits farmers
func (m *AuthMiddleware) FarmerOnly() gin.HandlerFunc {
	return m.RequireRole(models.RoleFarmer)
}

// ClientOnly admits clients
func (m *AuthMiddleware) ClientOnly() gin.HandlerFunc {
	return m.RequireRole(models.RoleClient)
}

// CurrentUser returns the identity attached by AuthRequired
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
