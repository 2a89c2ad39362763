package realtime

import (
	"errors"
	"sync"
	"time"

	"fancast/internal/core/domain"
	"fancast/internal/infrastructure/monitoring"

	"go.uber.org/zap"
)

// Hub indexes every authenticated connection by handle and by user, and
// tracks conversation room membership. One active connection per user:
// a reconnect replaces the previous socket. The hub is also the
// NotificationFanout implementation: delivery is best-effort and
// at-most-once, offline recipients are dropped.
type Hub struct {
	mu            sync.RWMutex
	sessions      map[string]Client
	users         map[domain.UserID]string
	conversations map[string]map[string]Client
	clientConvs   map[string]map[string]struct{}

	metrics *monitoring.PrometheusCollector
	logger  *zap.SugaredLogger
}

func NewHub(metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		sessions:      make(map[string]Client),
		users:         make(map[domain.UserID]string),
		conversations: make(map[string]map[string]Client),
		clientConvs:   make(map[string]map[string]struct{}),
		metrics:       metrics,
		logger:        logger,
	}
}

// Attach registers a connection. The previous connection of the same
// user, if any, is returned so the caller can close it after the swap.
func (h *Hub) Attach(c Client) Client {
	var previous Client

	h.mu.Lock()
	if existingID, ok := h.users[c.Identity().ID]; ok {
		if existing := h.sessions[existingID]; existing != nil {
			previous = existing
			h.detachLocked(existingID)
		}
	}
	h.sessions[c.ID()] = c
	h.users[c.Identity().ID] = c.ID()
	h.clientConvs[c.ID()] = make(map[string]struct{})
	h.mu.Unlock()

	h.metrics.RecordSessionOpened()
	return previous
}

// Detach removes the connection and drops its conversation memberships.
// No broadcast accompanies a conversation drop.
func (h *Hub) Detach(c Client) {
	h.mu.Lock()
	_, tracked := h.sessions[c.ID()]
	h.detachLocked(c.ID())
	h.mu.Unlock()

	if tracked {
		h.metrics.RecordSessionClosed()
	}
}

func (h *Hub) Lookup(connID string) (Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.sessions[connID]
	return c, ok
}

func (h *Hub) ByUser(userID domain.UserID) (Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	connID, ok := h.users[userID]
	if !ok {
		return nil, false
	}
	c, ok := h.sessions[connID]
	return c, ok
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// JoinConversation adds the connection to a conversation room. The
// participant check belongs to the session layer; the hub only tracks
// membership.
func (h *Hub) JoinConversation(conversationID string, c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[c.ID()]; !ok {
		return
	}

	roomMembers := h.conversations[conversationID]
	if roomMembers == nil {
		roomMembers = make(map[string]Client)
		h.conversations[conversationID] = roomMembers
	}
	roomMembers[c.ID()] = c

	memberships := h.clientConvs[c.ID()]
	if memberships == nil {
		memberships = make(map[string]struct{})
		h.clientConvs[c.ID()] = memberships
	}
	memberships[conversationID] = struct{}{}
}

func (h *Hub) LeaveConversation(conversationID string, c Client) {
	h.mu.Lock()
	h.leaveConversationLocked(conversationID, c.ID())
	h.mu.Unlock()
}

// InConversation reports whether the connection has joined the room.
func (h *Hub) InConversation(conversationID string, c Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	roomMembers, ok := h.conversations[conversationID]
	if !ok {
		return false
	}
	_, ok = roomMembers[c.ID()]
	return ok
}

// BroadcastConversation delivers payload to every member of the
// conversation room, sender included. Returns the delivered count.
func (h *Hub) BroadcastConversation(conversationID string, payload []byte) int {
	h.mu.RLock()
	roomMembers := h.conversations[conversationID]
	members := make([]Client, 0, len(roomMembers))
	for _, c := range roomMembers {
		members = append(members, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if err := c.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// NotifyOne delivers the event to the recipient's connection if they
// are online; otherwise the event is dropped. Only malformed input is
// an error, a delivery miss never is.
func (h *Hub) NotifyOne(recipientID domain.UserID, event domain.Notification) error {
	if recipientID == "" {
		return errors.New("recipient id is required")
	}
	payload, err := h.encodeNotification(event)
	if err != nil {
		return err
	}
	h.deliver(recipientID, payload)
	return nil
}

// NotifyMany applies NotifyOne to each recipient independently. Partial
// delivery is expected.
func (h *Hub) NotifyMany(recipientIDs []domain.UserID, event domain.Notification) error {
	payload, err := h.encodeNotification(event)
	if err != nil {
		return err
	}
	for _, id := range recipientIDs {
		if id == "" {
			continue
		}
		h.deliver(id, payload)
	}
	return nil
}

// BroadcastGlobal delivers the event to every connected session.
func (h *Hub) BroadcastGlobal(event domain.Notification) error {
	if event.Type == "" {
		return errors.New("notification type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	payload, err := encodeEvent(domain.EventNotification, event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	members := make([]Client, 0, len(h.sessions))
	for _, c := range h.sessions {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if err := c.Send(payload); err != nil {
			h.metrics.RecordNotification(false)
			continue
		}
		h.metrics.RecordNotification(true)
	}
	return nil
}

func (h *Hub) encodeNotification(event domain.Notification) ([]byte, error) {
	if event.Type == "" {
		return nil, errors.New("notification type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return encodeEvent(domain.EventNotification, event)
}

func (h *Hub) deliver(recipientID domain.UserID, payload []byte) {
	c, ok := h.ByUser(recipientID)
	if !ok {
		h.metrics.RecordNotification(false)
		return
	}
	if err := c.Send(payload); err != nil {
		h.logger.Debugw("notification delivery miss",
			"recipient_id", recipientID,
			"error", err,
		)
		h.metrics.RecordNotification(false)
		return
	}
	h.metrics.RecordNotification(true)
}

func (h *Hub) detachLocked(connID string) {
	c, ok := h.sessions[connID]
	if !ok {
		return
	}
	delete(h.sessions, connID)

	if current, ok := h.users[c.Identity().ID]; ok && current == connID {
		delete(h.users, c.Identity().ID)
	}

	for conversationID := range h.clientConvs[connID] {
		h.leaveConversationLocked(conversationID, connID)
	}
	delete(h.clientConvs, connID)
}

func (h *Hub) leaveConversationLocked(conversationID, connID string) {
	roomMembers := h.conversations[conversationID]
	if roomMembers == nil {
		return
	}
	delete(roomMembers, connID)
	if len(roomMembers) == 0 {
		delete(h.conversations, conversationID)
	}
	if memberships, ok := h.clientConvs[connID]; ok {
		delete(memberships, conversationID)
	}
}
