package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
	"fancast/internal/infrastructure/monitoring"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type sessionState int

const (
	stateAuthenticated sessionState = iota
	stateClosed
)

// SessionDeps bundles the collaborators a session dispatches into.
type SessionDeps struct {
	Registry      *Registry
	Hub           *Hub
	Relay         *Relay
	Streams       ports.StreamRepository
	Identities    ports.IdentityRepository
	Conversations ports.ConversationRepository
	Access        ports.AccessEvaluator
	Metrics       *monitoring.PrometheusCollector
	Logger        *zap.SugaredLogger

	// Zero MessagesPerSecond disables inbound rate limiting.
	MessagesPerSecond float64
	MessageBurst      int
}

// Session binds an authenticated identity to a connection and tracks
// which stream rooms and conversation rooms it has joined. A session is
// created already authenticated (the handshake happens before
// construction) and ends in the terminal Closed state, at which point
// it is removed from every room it was a member of.
type Session struct {
	conn    Client
	deps    SessionDeps
	limiter *rate.Limiter
	logger  *zap.SugaredLogger

	mu          sync.Mutex
	state       sessionState
	streamRooms map[domain.StreamID]struct{}
	convRooms   map[string]struct{}
}

func NewSession(conn Client, deps SessionDeps) *Session {
	var limiter *rate.Limiter
	if deps.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(deps.MessagesPerSecond), deps.MessageBurst)
	}

	return &Session{
		conn:    conn,
		deps:    deps,
		limiter: limiter,
		logger: deps.Logger.With(
			"conn_id", conn.ID(),
			"user_id", conn.Identity().ID,
		),
		state:       stateAuthenticated,
		streamRooms: make(map[domain.StreamID]struct{}),
		convRooms:   make(map[string]struct{}),
	}
}

func (s *Session) Conn() Client { return s.conn }

// Dispatch routes one inbound tagged event to its handler. Handler
// failures are answered with a typed error event to this connection
// only; they never terminate the session.
func (s *Session) Dispatch(ctx context.Context, raw []byte) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.sendError(domain.ErrCodeRateLimited, "slow down")
		return
	}

	var msg domain.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
		s.sendError(domain.ErrCodeMalformedEvent, "expected {event, data}")
		return
	}

	switch msg.Event {
	case domain.EventStreamJoin:
		s.handleStreamJoin(ctx, msg.Data)
	case domain.EventStreamLeave:
		s.handleStreamLeave(msg.Data)
	case domain.EventWebRTCOffer:
		s.handleOffer(msg.Data)
	case domain.EventWebRTCAnswer:
		s.handleAnswer(msg.Data)
	case domain.EventWebRTCICE:
		s.handleICECandidate(msg.Data)
	case domain.EventStreamChat:
		s.handleChat(msg.Data)
	case domain.EventStreamReaction:
		s.handleReaction(msg.Data)
	case domain.EventConversationJoin:
		s.handleConversationJoin(ctx, msg.Data)
	case domain.EventConversationLeave:
		s.handleConversationLeave(msg.Data)
	case domain.EventConversationMessage:
		s.handleConversationMessage(msg.Data)
	default:
		s.sendError(domain.ErrCodeUnknownEvent, "unknown event: "+msg.Event)
	}
}

func (s *Session) handleStreamJoin(ctx context.Context, data json.RawMessage) {
	var req struct {
		StreamID domain.StreamID `json:"stream_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.StreamID == "" {
		s.sendError(domain.ErrCodeMalformedEvent, "stream_id is required")
		return
	}

	stream, err := s.deps.Streams.GetByID(ctx, req.StreamID)
	if err != nil {
		s.sendError(domain.ErrCodeStreamNotFound, string(req.StreamID))
		return
	}
	if !stream.Live {
		s.sendError(domain.ErrCodeStreamNotLive, string(req.StreamID))
		return
	}

	// Room admission honors the same access model as the REST read
	// path: a paid stream cannot be watched by joining the socket room
	// around the HTTP gate.
	identity := s.conn.Identity()
	if !s.deps.Access.Evaluate(ctx, stream.Policy, &identity, req.StreamID.ContentID()) {
		s.sendError(domain.ErrCodeAccessDenied, string(req.StreamID))
		return
	}

	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	count := s.deps.Registry.Join(req.StreamID, s.conn)

	// A join that lands after the connection closed must not leak
	// membership: undo and walk away.
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		s.deps.Registry.Leave(req.StreamID, s.conn)
		return
	}
	s.streamRooms[req.StreamID] = struct{}{}
	s.mu.Unlock()

	s.deps.Metrics.RecordRoomJoin(req.StreamID, count)
	s.deps.Metrics.RecordRoomsActive(s.deps.Registry.RoomCount())

	var broadcaster *domain.Identity
	if b, err := s.deps.Identities.GetByID(ctx, stream.CreatorID); err == nil {
		broadcaster = b
	}

	s.send(domain.EventStreamJoined, map[string]interface{}{
		"stream_id":    req.StreamID,
		"broadcaster":  broadcaster,
		"viewer_count": count,
	})

	s.deps.Relay.BroadcastViewerJoined(req.StreamID, s.conn)
	s.deps.Relay.BroadcastViewerCount(req.StreamID, count)
}

func (s *Session) handleStreamLeave(data json.RawMessage) {
	var req struct {
		StreamID domain.StreamID `json:"stream_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.StreamID == "" {
		s.sendError(domain.ErrCodeMalformedEvent, "stream_id is required")
		return
	}

	s.mu.Lock()
	_, member := s.streamRooms[req.StreamID]
	delete(s.streamRooms, req.StreamID)
	s.mu.Unlock()

	// Leaving twice, or a room that no longer exists, is a no-op.
	if !member {
		return
	}

	count := s.deps.Registry.Leave(req.StreamID, s.conn)
	s.deps.Metrics.RecordRoomLeave(req.StreamID, count)
	s.deps.Metrics.RecordRoomsActive(s.deps.Registry.RoomCount())

	s.deps.Relay.BroadcastViewerLeft(req.StreamID, s.conn)
	s.deps.Relay.BroadcastViewerCount(req.StreamID, count)
}

func (s *Session) handleOffer(data json.RawMessage) {
	var req domain.SignalPayload
	if err := json.Unmarshal(data, &req); err != nil || req.StreamID == "" || len(req.Payload) == 0 {
		s.sendError(domain.ErrCodeMalformedEvent, "stream_id and payload are required")
		return
	}
	s.deps.Relay.RelayOffer(req.StreamID, s.conn, req.Payload)
}

func (s *Session) handleAnswer(data json.RawMessage) {
	var req domain.SignalPayload
	if err := json.Unmarshal(data, &req); err != nil || req.Target == "" || len(req.Payload) == 0 {
		s.sendError(domain.ErrCodeMalformedEvent, "target and payload are required")
		return
	}
	s.deps.Relay.RelayAnswer(req.Target, req.StreamID, s.conn, req.Payload)
}

func (s *Session) handleICECandidate(data json.RawMessage) {
	var req domain.SignalPayload
	if err := json.Unmarshal(data, &req); err != nil || len(req.Payload) == 0 {
		s.sendError(domain.ErrCodeMalformedEvent, "payload is required")
		return
	}
	if req.Target == "" && req.StreamID == "" {
		s.sendError(domain.ErrCodeMalformedEvent, "target or stream_id is required")
		return
	}
	s.deps.Relay.RelayICECandidate(req.StreamID, s.conn, req.Payload, req.Target)
}

func (s *Session) handleChat(data json.RawMessage) {
	var req struct {
		StreamID domain.StreamID `json:"stream_id"`
		Content  string          `json:"content"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.StreamID == "" || req.Content == "" {
		s.sendError(domain.ErrCodeMalformedEvent, "stream_id and content are required")
		return
	}

	if !s.inStreamRoom(req.StreamID) {
		s.sendError(domain.ErrCodeAccessDenied, "join the stream before chatting")
		return
	}

	s.deps.Relay.BroadcastChat(req.StreamID, s.conn.Identity(), req.Content)
}

func (s *Session) handleReaction(data json.RawMessage) {
	var req struct {
		StreamID domain.StreamID `json:"stream_id"`
		Reaction string          `json:"reaction"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.StreamID == "" || req.Reaction == "" {
		s.sendError(domain.ErrCodeMalformedEvent, "stream_id and reaction are required")
		return
	}

	if !s.inStreamRoom(req.StreamID) {
		s.sendError(domain.ErrCodeAccessDenied, "join the stream before reacting")
		return
	}

	s.deps.Relay.BroadcastReaction(req.StreamID, s.conn.Identity(), req.Reaction)
}

func (s *Session) handleConversationJoin(ctx context.Context, data json.RawMessage) {
	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		s.sendError(domain.ErrCodeMalformedEvent, "conversation_id is required")
		return
	}

	ok, err := s.deps.Conversations.IsParticipant(ctx, req.ConversationID, s.conn.Identity().ID)
	if err != nil {
		s.logger.Warnw("participant lookup failed", "conversation_id", req.ConversationID, "error", err)
		s.sendError(domain.ErrCodeNotParticipant, req.ConversationID)
		return
	}
	if !ok {
		s.sendError(domain.ErrCodeNotParticipant, req.ConversationID)
		return
	}

	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return
	}
	s.convRooms[req.ConversationID] = struct{}{}
	s.mu.Unlock()

	s.deps.Hub.JoinConversation(req.ConversationID, s.conn)
}

func (s *Session) handleConversationLeave(data json.RawMessage) {
	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		s.sendError(domain.ErrCodeMalformedEvent, "conversation_id is required")
		return
	}

	s.mu.Lock()
	delete(s.convRooms, req.ConversationID)
	s.mu.Unlock()

	s.deps.Hub.LeaveConversation(req.ConversationID, s.conn)
}

func (s *Session) handleConversationMessage(data json.RawMessage) {
	var req struct {
		ConversationID string `json:"conversation_id"`
		Content        string `json:"content"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" || req.Content == "" {
		s.sendError(domain.ErrCodeMalformedEvent, "conversation_id and content are required")
		return
	}

	if !s.deps.Hub.InConversation(req.ConversationID, s.conn) {
		s.sendError(domain.ErrCodeNotParticipant, req.ConversationID)
		return
	}

	payload, err := encodeEvent(domain.EventConversationMessage, map[string]interface{}{
		"conversation_id": req.ConversationID,
		"sender":          s.conn.Identity(),
		"content":         req.Content,
	})
	if err != nil {
		return
	}
	s.deps.Hub.BroadcastConversation(req.ConversationID, payload)
}

// Close moves the session to its terminal state and removes it from
// every room it joined: each stream room departure fires one
// viewer-count update to whoever remains, conversation memberships are
// dropped silently. Cleanup assumes nothing can be sent to the closing
// client anymore. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return
	}
	s.state = stateClosed
	streamRooms := make([]domain.StreamID, 0, len(s.streamRooms))
	for id := range s.streamRooms {
		streamRooms = append(streamRooms, id)
	}
	s.streamRooms = make(map[domain.StreamID]struct{})
	s.convRooms = make(map[string]struct{})
	s.mu.Unlock()

	for _, streamID := range streamRooms {
		count := s.deps.Registry.Leave(streamID, s.conn)
		s.deps.Metrics.RecordRoomLeave(streamID, count)
		s.deps.Relay.BroadcastViewerLeft(streamID, s.conn)
		s.deps.Relay.BroadcastViewerCount(streamID, count)
	}
	s.deps.Metrics.RecordRoomsActive(s.deps.Registry.RoomCount())

	s.deps.Hub.Detach(s.conn)
}

// StreamRooms returns a snapshot of the stream rooms this session has
// joined.
func (s *Session) StreamRooms() []domain.StreamID {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]domain.StreamID, 0, len(s.streamRooms))
	for id := range s.streamRooms {
		rooms = append(rooms, id)
	}
	return rooms
}

func (s *Session) inStreamRoom(streamID domain.StreamID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streamRooms[streamID]
	return ok
}

func (s *Session) send(event string, data interface{}) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		s.logger.Warnw("failed to encode event", "event", event, "error", err)
		return
	}
	if err := s.conn.Send(payload); err != nil {
		s.logger.Debugw("send failed", "event", event, "error", err)
	}
}

func (s *Session) sendError(code, message string) {
	s.send(domain.EventError, domain.ErrorEvent{Code: code, Message: message})
}
