package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	webrtc "github.com/pion/webrtc/v3"

	"fancast/pkg/config"
)

// WebRTCHandler hands clients the ICE server configuration they need
// before opening peer connections. The SDP exchange itself rides the
// websocket relay.
type WebRTCHandler struct {
	iceServers []webrtc.ICEServer
}

func NewWebRTCHandler(cfg *config.Config) *WebRTCHandler {
	var iceServers []webrtc.ICEServer
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
	return &WebRTCHandler{iceServers: iceServers}
}

func (h *WebRTCHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/api/v1/webrtc/config", h.GetConfig)
}

func (h *WebRTCHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ice_servers": h.iceServers,
	})
}
