package realtime

import (
	"encoding/json"
	"time"

	"fancast/internal/core/domain"
	"fancast/internal/infrastructure/monitoring"

	"go.uber.org/zap"
)

// Relay routes WebRTC signalling between the broadcaster and viewers of
// a stream room and fans chat, reaction and tip events out to the room.
// Every operation is fire-and-forget: a disconnected recipient is a
// logged miss, never an error surfaced to the sender.
type Relay struct {
	registry *Registry
	index    ClientIndex
	metrics  *monitoring.PrometheusCollector
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewRelay(registry *Registry, index ClientIndex, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *Relay {
	return &Relay{
		registry: registry,
		index:    index,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// RelayOffer forwards an SDP offer to every other connection in the
// room. The forwarded message carries the sender's identity and
// connection handle so the receiving side can return a targeted answer.
func (r *Relay) RelayOffer(streamID domain.StreamID, sender Client, payload json.RawMessage) {
	forward := domain.SignalForward{
		StreamID: streamID,
		From:     sender.ID(),
		Sender:   sender.Identity(),
		Payload:  payload,
	}
	r.fanOut(domain.EventWebRTCOffer, "offer", r.registry.MembersExcept(streamID, sender.ID()), forward)
}

// RelayAnswer delivers an SDP answer to exactly the named connection.
// A vanished target is logged, not fatal.
func (r *Relay) RelayAnswer(targetConnID string, streamID domain.StreamID, sender Client, payload json.RawMessage) {
	forward := domain.SignalForward{
		StreamID: streamID,
		From:     sender.ID(),
		Sender:   sender.Identity(),
		Payload:  payload,
	}
	r.unicast(domain.EventWebRTCAnswer, "answer", targetConnID, forward)
}

// RelayICECandidate unicasts when a target handle is named, otherwise
// broadcasts to the room. The sender never receives its own candidate.
func (r *Relay) RelayICECandidate(streamID domain.StreamID, sender Client, payload json.RawMessage, targetConnID string) {
	forward := domain.SignalForward{
		StreamID: streamID,
		From:     sender.ID(),
		Sender:   sender.Identity(),
		Payload:  payload,
	}

	if targetConnID != "" {
		r.unicast(domain.EventWebRTCICE, "ice", targetConnID, forward)
		return
	}
	r.fanOut(domain.EventWebRTCICE, "ice", r.registry.MembersExcept(streamID, sender.ID()), forward)
}

// BroadcastChat fans a chat message out to every connection in the
// room, the sender included, stamped with the server clock.
func (r *Relay) BroadcastChat(streamID domain.StreamID, sender domain.Identity, content string) domain.ChatMessage {
	msg := domain.ChatMessage{
		StreamID:  streamID,
		Sender:    sender,
		Content:   content,
		Timestamp: r.now(),
	}
	r.fanOut(domain.EventStreamChat, "chat", r.registry.Members(streamID), msg)
	r.metrics.RecordChatMessage()
	return msg
}

// BroadcastReaction fans a reaction out to the room. Not persisted.
func (r *Relay) BroadcastReaction(streamID domain.StreamID, sender domain.Identity, reaction string) {
	r.fanOut(domain.EventStreamReaction, "reaction", r.registry.Members(streamID), domain.Reaction{
		StreamID:  streamID,
		Sender:    sender,
		Reaction:  reaction,
		Timestamp: r.now(),
	})
	r.metrics.RecordReaction()
}

// BroadcastTip fans a tip event out to the room.
func (r *Relay) BroadcastTip(streamID domain.StreamID, sender domain.Identity, amountCents int64, message string) {
	r.fanOut(domain.EventStreamTip, "tip", r.registry.Members(streamID), domain.TipEvent{
		StreamID:    streamID,
		Sender:      sender,
		AmountCents: amountCents,
		Message:     message,
		Timestamp:   r.now(),
	})
	r.metrics.RecordTip()
}

// BroadcastViewerCount pushes the current count to everyone in the room.
func (r *Relay) BroadcastViewerCount(streamID domain.StreamID, count int) {
	r.fanOut(domain.EventStreamViewerCount, "viewer-count", r.registry.Members(streamID), map[string]interface{}{
		"stream_id": streamID,
		"count":     count,
	})
}

// BroadcastViewerJoined announces a new viewer to the rest of the room.
func (r *Relay) BroadcastViewerJoined(streamID domain.StreamID, joined Client) {
	r.fanOut(domain.EventStreamViewerJoin, "viewer-joined", r.registry.MembersExcept(streamID, joined.ID()), map[string]interface{}{
		"stream_id": streamID,
		"identity":  joined.Identity(),
	})
}

// BroadcastViewerLeft announces a departure to whoever remains.
func (r *Relay) BroadcastViewerLeft(streamID domain.StreamID, left Client) {
	r.fanOut(domain.EventStreamViewerLeft, "viewer-left", r.registry.MembersExcept(streamID, left.ID()), map[string]interface{}{
		"stream_id": streamID,
		"identity":  left.Identity(),
	})
}

func (r *Relay) unicast(event, kind, targetConnID string, data interface{}) {
	target, ok := r.index.Lookup(targetConnID)
	if !ok {
		r.logger.Debugw("relay target gone",
			"kind", kind,
			"target", targetConnID,
		)
		r.metrics.RecordRelayMiss(kind)
		return
	}

	payload, err := encodeEvent(event, data)
	if err != nil {
		r.logger.Warnw("failed to encode relay message", "kind", kind, "error", err)
		return
	}

	if err := target.Send(payload); err != nil {
		r.metrics.RecordRelayMiss(kind)
		return
	}
	r.metrics.RecordRelayDelivered(kind)
}

func (r *Relay) fanOut(event, kind string, members []Client, data interface{}) {
	if len(members) == 0 {
		return
	}

	payload, err := encodeEvent(event, data)
	if err != nil {
		r.logger.Warnw("failed to encode broadcast", "kind", kind, "error", err)
		return
	}

	for _, c := range members {
		if err := c.Send(payload); err != nil {
			r.metrics.RecordRelayMiss(kind)
			continue
		}
		r.metrics.RecordRelayDelivered(kind)
	}
}
