package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"fancast/internal/core/domain"
	"fancast/internal/core/services"
	"fancast/internal/infrastructure/repositories/memory"
)

func newTestRouter(authService services.AuthService, optional bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	var mw gin.HandlerFunc
	if optional {
		mw = OptionalAuthMiddleware(authService)
	} else {
		mw = AuthMiddleware(authService)
	}

	router.GET("/whoami", mw, func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"user_id": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return router
}

func mintToken(t *testing.T, authService services.AuthService) string {
	t.Helper()
	token, err := authService.GenerateToken(&domain.Identity{ID: "user-1", Role: domain.RoleStudent})
	assert.NoError(t, err)
	return token
}

func TestAuthMiddleware_RejectsMissingHeader(t *testing.T) {
	authService := services.NewAuthService("secret", time.Hour, time.Hour, memory.NewMemoryIdentityRepository())
	router := newTestRouter(authService, false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RejectsMalformedHeader(t *testing.T) {
	authService := services.NewAuthService("secret", time.Hour, time.Hour, memory.NewMemoryIdentityRepository())
	router := newTestRouter(authService, false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_AcceptsBearerToken(t *testing.T) {
	authService := services.NewAuthService("secret", time.Hour, time.Hour, memory.NewMemoryIdentityRepository())
	router := newTestRouter(authService, false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, authService))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestOptionalAuthMiddleware_AllowsAnonymous(t *testing.T) {
	authService := services.NewAuthService("secret", time.Hour, time.Hour, memory.NewMemoryIdentityRepository())
	router := newTestRouter(authService, true)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "null")
}

func TestOptionalAuthMiddleware_IgnoresInvalidToken(t *testing.T) {
	authService := services.NewAuthService("secret", time.Hour, time.Hour, memory.NewMemoryIdentityRepository())
	router := newTestRouter(authService, true)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	router.ServeHTTP(w, req)

	// Anonymous, not rejected.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "null")
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authService := services.NewAuthService("secret", time.Hour, time.Hour, memory.NewMemoryIdentityRepository())

	router := gin.New()
	router.POST("/creator-only", AuthMiddleware(authService), RequireRole(domain.RoleCreator), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	studentToken, err := authService.GenerateToken(&domain.Identity{ID: "user-1", Role: domain.RoleStudent})
	assert.NoError(t, err)
	creatorToken, err := authService.GenerateToken(&domain.Identity{ID: "user-2", Role: domain.RoleCreator})
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/creator-only", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/creator-only", nil)
	req.Header.Set("Authorization", "Bearer "+creatorToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}
