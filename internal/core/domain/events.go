package domain

import (
	"encoding/json"
	"time"
)

// Realtime event names. Inbound events are dispatched by the session
// loop; outbound events are fanned out by the relay and the hub.
const (
	EventStreamJoin        = "stream:join"
	EventStreamJoined      = "stream:joined"
	EventStreamLeave       = "stream:leave"
	EventStreamViewerCount = "stream:viewer-count"
	EventStreamViewerJoin  = "stream:viewer-joined"
	EventStreamViewerLeft  = "stream:viewer-left"
	EventStreamChat        = "stream:chat"
	EventStreamReaction    = "stream:reaction"
	EventStreamTip         = "stream:tip"

	EventWebRTCOffer  = "webrtc:offer"
	EventWebRTCAnswer = "webrtc:answer"
	EventWebRTCICE    = "webrtc:ice-candidate"

	EventConversationJoin    = "conversation:join"
	EventConversationLeave   = "conversation:leave"
	EventConversationMessage = "conversation:message"

	EventNotification = "notification:new"
	EventError        = "error"
)

// Error codes surfaced to the requesting connection only.
const (
	ErrCodeStreamNotFound    = "stream-not-found"
	ErrCodeStreamNotLive     = "stream-not-live"
	ErrCodeAccessDenied      = "access-denied"
	ErrCodeNotParticipant    = "not-a-participant"
	ErrCodeMalformedEvent    = "malformed-event"
	ErrCodeRateLimited       = "rate-limited"
	ErrCodeUnknownEvent      = "unknown-event"
)

// Handshake rejection reasons, sent in the close frame before the
// socket is torn down.
const (
	CloseNoCredential      = "no-credential"
	CloseInvalidCredential = "invalid-credential"
	CloseBanned            = "banned"
)

// ClientMessage is the tagged envelope every inbound websocket frame
// must decode to.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the outbound envelope. Data is marshalled in place so
// a fan-out serializes the payload exactly once.
type ServerEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Signalling payloads. The SDP / candidate bodies are opaque to the
// relay; Target addresses a specific connection handle.
type SignalPayload struct {
	StreamID StreamID        `json:"stream_id"`
	Target   string          `json:"target,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// SignalForward is what the receiving side of a relayed signalling
// message sees: the payload plus sender identity and the sender's
// connection handle for the targeted reply path.
type SignalForward struct {
	StreamID StreamID        `json:"stream_id"`
	From     string          `json:"from"`
	Sender   Identity        `json:"sender"`
	Payload  json.RawMessage `json:"payload"`
}

type ChatMessage struct {
	StreamID  StreamID  `json:"stream_id"`
	Sender    Identity  `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Reaction struct {
	StreamID  StreamID  `json:"stream_id"`
	Sender    Identity  `json:"sender"`
	Reaction  string    `json:"reaction"`
	Timestamp time.Time `json:"timestamp"`
}

type TipEvent struct {
	StreamID    StreamID  `json:"stream_id"`
	Sender      Identity  `json:"sender"`
	AmountCents int64     `json:"amount_cents"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notification types delivered through the fan-out.
const (
	NotifyNewSubscriber  = "subscription.created"
	NotifyTipReceived    = "tip.received"
	NotifyStreamStarted  = "stream.started"
	NotifyPostCreated    = "post.created"
	NotifyAnnouncement   = "announcement"
)

type Notification struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
