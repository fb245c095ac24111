package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"versioned-notes/internal/auth"
	"versioned-notes/internal/domain"
	"versioned-notes/internal/errors"
	"versioned-notes/internal/logger"
	"versioned-notes/internal/utils"
)

// Handler handles HTTP requests for users
type Handler struct {
	service Service
	jwt     *auth.JWT
	log     *zap.Logger
}

// NewHandler creates a new user handler
func NewHandler(service Service, jwt *auth.JWT, log *zap.Logger) *Handler {
	return &Handler{service: service, jwt: jwt, log: log}
}

// FormLogin represents login form data
type FormLogin struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// FormRegister represents registration form data
type FormRegister struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Register handles user registration
func (h *Handler) Register(c *gin.Context) {
	var form FormRegister
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	user := &domain.User{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}

	if err := h.service.Register(c.Request.Context(), user); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.ToSafeUser()})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var form FormLogin
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	user, err := h.service.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		c.Error(err)
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(user.ID, user.TokenVersion)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"user":         user.ToSafeUser(),
	})
}

// Logout revokes every token of the current user
func (h *Handler) Logout(c *gin.Context) {
	userID := c.GetUint64("user_id")

	if err := h.service.IncreaseTokenVersion(c.Request.Context(), userID); err != nil {
		c.Error(err)
		return
	}
	h.log.Debug("tokens revoked", zap.Uint64(logger.FieldUID, userID))
	c.Status(http.StatusNoContent)
}

// GetProfile handles getting the current user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.Error(errors.Unauthorized("User not found", nil))
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user.ToSafeUser())
}

// BanUser bans a user and retires their notes. Admin only.
func (h *Handler) BanUser(c *gin.Context) {
	targetID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		c.Error(errors.NotFound("User not found", err))
		return
	}

	adminID := c.GetUint64("user_id")

	retired, err := h.service.BanUser(c.Request.Context(), adminID, targetID)
	if err != nil {
		h.log.Info("ban rejected",
			zap.Uint64("admin", adminID),
			zap.Uint64(logger.FieldUID, targetID),
			zap.Error(err))
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": targetID, "retired_notes": retired})
}

// ListUsers lists every user that is not banned. Admin only.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": users})
}
