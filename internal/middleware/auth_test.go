package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket-backend/internal/middleware"
	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/services"
	"agrimarket-backend/test/helpers"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *services.AuthService, map[string]helpers.TestUser) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := helpers.SetupTestDatabase(t)
	users := map[string]helpers.TestUser{
		"farmer": helpers.CreateTestUser(t, db, models.RoleFarmer, "+254766000001"),
		"client": helpers.CreateTestUser(t, db, models.RoleClient, "+254766000002"),
	}

	authService := services.NewAuthService(helpers.TestJWTSecret, time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(authService, services.NewUserService(db))

	whoami := func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "role": user.Role, "userID": c.GetString("userID")})
	}

	router := gin.New()
	router.GET("/me", authMiddleware.AuthRequired(), whoami)
	router.GET("/farm", authMiddleware.AuthRequired(), authMiddleware.FarmerOnly(), whoami)
	router.GET("/shop", authMiddleware.AuthRequired(), authMiddleware.ClientOnly(), whoami)
	router.GET("/feed", authMiddleware.WebSocketAuth(), authMiddleware.FarmerOnly(), whoami)
	router.GET("/ungated", authMiddleware.FarmerOnly(), whoami)

	return router, authService, users
}

func TestAuthRequired(t *testing.T) {
	router, authService, users := setupAuthRouter(t)
	farmer := users["farmer"]

	t.Run("ValidToken", func(t *testing.T) {
		w := helpers.MakeRequest(router, "GET", "/me", nil, map[string]string{"Authorization": "Bearer " + farmer.Token})
		require.Equal(t, http.StatusOK, w.Code)

		response := helpers.DecodeObject(t, w)
		assert.Equal(t, farmer.ID, response["id"])
		assert.Equal(t, farmer.ID, response["userID"])
		assert.Equal(t, "farmer", response["role"])
	})

	rejected := map[string]map[string]string{
		"NoHeader":    nil,
		"WrongScheme": {"Authorization": "Basic " + farmer.Token},
		"EmptyBearer": {"Authorization": "Bearer "},
		"Garbage":     {"Authorization": "Bearer not-a-token"},
	}
	for name, headers := range rejected {
		t.Run(name, func(t *testing.T) {
			w := helpers.MakeRequest(router, "GET", "/me", nil, headers)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotEmpty(t, helpers.DecodeObject(t, w)["message"])
		})
	}

	t.Run("ExpiredToken", func(t *testing.T) {
		token, err := services.NewAuthService(helpers.TestJWTSecret, -time.Minute).GenerateToken(farmer.User)
		require.NoError(t, err)

		w := helpers.MakeRequest(router, "GET", "/me", nil, map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		token, err := authService.GenerateToken(&models.User{ID: "ghost", Role: models.RoleFarmer})
		require.NoError(t, err)

		w := helpers.MakeRequest(router, "GET", "/me", nil, map[string]string{"Authorization": "Bearer " + token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("QueryTokenOnlyForWebSocket", func(t *testing.T) {
		w := helpers.MakeRequest(router, "GET", "/me?token="+farmer.Token, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = helpers.MakeRequest(router, "GET", "/feed?token="+farmer.Token, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	router, _, users := setupAuthRouter(t)
	farmer := users["farmer"]
	client := users["client"]

	cases := []struct {
		path   string
		token  string
		status int
	}{
		{"/farm", farmer.Token, http.StatusOK},
		{"/farm", client.Token, http.StatusForbidden},
		{"/shop", client.Token, http.StatusOK},
		{"/shop", farmer.Token, http.StatusForbidden},
		{"/feed", client.Token, http.StatusForbidden},
	}

	for _, tc := range cases {
		w := helpers.MakeRequest(router, "GET", tc.path, nil, map[string]string{"Authorization": "Bearer " + tc.token})
		assert.Equal(t, tc.status, w.Code, "%s", tc.path)
	}

	t.Run("NoIdentityIsUnauthenticated", func(t *testing.T) {
		w := helpers.MakeRequest(router, "GET", "/ungated", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCurrentUserWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil).WithContext(context.Background())

	user, ok := middleware.CurrentUser(c)
	assert.False(t, ok)
	assert.Nil(t, user)
}
