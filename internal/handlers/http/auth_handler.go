package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
	"fancast/internal/core/services"
	"fancast/pkg/errors"
)

type AuthHandler struct {
	authService services.AuthService
	identities  ports.IdentityRepository
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, identities ports.IdentityRepository, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		identities:  identities,
		tokenTTL:    tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/token", h.IssueToken)
		api.POST("/refresh", h.RefreshToken)
	}
}

type TokenRequest struct {
	UserID string `json:"user_id" binding:"required,max=128"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

// IssueToken mints an access token for a known identity. The platform
// gateway normally does this after its own login flow; this endpoint
// covers development and the realtime integration tests.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	identity, err := h.identities.GetByID(c.Request.Context(), domain.UserID(req.UserID))
	if err != nil {
		c.Error(errors.NewNotFoundError("identity"))
		return
	}
	if identity.Banned {
		c.Error(errors.NewForbiddenError("identity is banned"))
		return
	}

	accessToken, err := h.authService.GenerateToken(identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken(identity.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate refresh token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       identity.ID,
		"display_name":  identity.DisplayName,
		"role":          identity.Role,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(h.tokenTTL / time.Second),
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := h.authService.ValidateToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	identity, err := h.identities.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if identity.Banned {
		c.JSON(http.StatusForbidden, gin.H{"error": "identity is banned"})
		return
	}

	accessToken, err := h.authService.GenerateToken(identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}
