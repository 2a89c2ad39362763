package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fancast/internal/infrastructure/realtime"
)

// BackendChecker reports whether the storage backends are reachable.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	backends BackendChecker
	hub      *realtime.Hub
	registry *realtime.Registry
}

func NewHealthHandler(backends BackendChecker, hub *realtime.Hub, registry *realtime.Registry) *HealthHandler {
	return &HealthHandler{
		backends: backends,
		hub:      hub,
		registry: registry,
	}
}

func (h *HealthHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	backends := "ok"
	if err := h.backends.HealthCheck(ctx); err != nil {
		status = http.StatusServiceUnavailable
		backends = err.Error()
	}

	c.JSON(status, gin.H{
		"status":   backends,
		"sessions": h.hub.SessionCount(),
		"rooms":    h.registry.RoomCount(),
	})
}
