package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"agrimarket-backend/internal/middleware"
	"agrimarket-backend/internal/models"
	"agrimarket-backend/internal/services"
)

// AuthHandlers handles registration, login and the current identity
type AuthHandlers struct {
	userService *services.UserService
	authService *services.AuthService
	log         logrus.FieldLogger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(userService *services.UserService, authService *services.AuthService, log logrus.FieldLogger) *AuthHandlers {
	return &AuthHandlers{
		userService: userService,
		authService: authService,
		log:         log,
	}
}

// identityResponse carries both _id and id; older mobile builds read _id
func identityResponse(user *models.User, token string) gin.H {
	resp := gin.H{
		"_id":         user.ID,
		"id":          user.ID,
		"name":        user.Name,
		"phoneNumber": user.PhoneNumber,
		"role":        user.Role,
		"farmName":    user.FarmName,
		"location":    user.Location,
	}
	if token != "" {
		resp["token"] = token
	}
	return resp
}

// Register handles user registration
func (h *AuthHandlers) Register(c *gin.Context) {
	var req models.UserRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid request data")
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	c.JSON(http.StatusCreated, identityResponse(user, token))
}

// Login handles user login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.UserLogin
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid request data")
		return
	}

	user, err := h.userService.AuthenticateUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, identityResponse(user, token))
}

// Me returns the identity the credential resolved to
func (h *AuthHandlers) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondMessage(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	c.JSON(http.StatusOK, identityResponse(user, ""))
}
