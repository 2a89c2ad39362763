package realtime

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
	"fancast/internal/core/services"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests to websocket sessions. The credential
// is verified exactly once, at the handshake; a rejected handshake
// closes the socket with a distinguishable reason before any session
// state exists.
type Server struct {
	upgrader websocket.Upgrader
	verifier ports.CredentialVerifier
	deps     SessionDeps
	connCfg  ConnectionConfig
	logger   *zap.SugaredLogger
}

func NewServer(verifier ports.CredentialVerifier, deps SessionDeps, connCfg ConnectionConfig, allowedOrigins []string) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		verifier: verifier,
		deps:     deps,
		connCfg:  connCfg,
		logger:   deps.Logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	identity, reason := s.authenticate(r)
	if identity == nil {
		s.deps.Metrics.RecordHandshakeFailure(reason)
		s.logger.Infow("handshake rejected", "reason", reason, "remote", r.RemoteAddr)
		deadline := time.Now().Add(s.connCfg.WriteTimeout)
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
		_ = ws.Close()
		return
	}

	conn := NewConnection(*identity, ws, s.connCfg)
	conn.Start()

	session := NewSession(conn, s.deps)
	if previous := s.deps.Hub.Attach(conn); previous != nil {
		if pc, ok := previous.(*Connection); ok {
			pc.Close(websocket.ClosePolicyViolation, "session replaced")
		}
		s.logger.Infow("replaced previous connection for reconnecting user", "user_id", identity.ID)
	}

	s.logger.Infow("session opened", "conn_id", conn.ID(), "user_id", identity.ID)

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read error", "conn_id", conn.ID(), "error", err)
			}
			break
		}
		session.Dispatch(r.Context(), raw)
	}

	conn.Close(websocket.CloseNormalClosure, "bye")
	session.Close()
	s.logger.Infow("session closed", "conn_id", conn.ID(), "user_id", identity.ID)
}

// authenticate resolves the credential from the query string or the
// Authorization header and verifies it. The returned reason is one of
// the handshake close reasons sent to the client.
func (s *Server) authenticate(r *http.Request) (*domain.Identity, string) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			credential = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if credential == "" {
		return nil, domain.CloseNoCredential
	}

	identity, err := s.verifier.Verify(r.Context(), credential)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIdentityBanned):
			return nil, domain.CloseBanned
		case errors.Is(err, services.ErrNoCredential):
			return nil, domain.CloseNoCredential
		default:
			return nil, domain.CloseInvalidCredential
		}
	}
	return identity, ""
}
