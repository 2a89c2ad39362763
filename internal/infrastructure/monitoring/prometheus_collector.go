package monitoring

import (
	"fancast/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exposes realtime coordination metrics. All
// recording methods are nil-receiver safe so components can run without
// a collector in tests.
type PrometheusCollector struct {
	sessionsConnected prometheus.Gauge
	roomsActive       prometheus.Gauge
	handshakeFailures *prometheus.CounterVec

	roomViewers *prometheus.GaugeVec
	roomJoins   prometheus.Counter

	chatMessages prometheus.Counter
	reactions    prometheus.Counter
	tips         prometheus.Counter

	relayDelivered *prometheus.CounterVec
	relayMissed    *prometheus.CounterVec

	notificationsDelivered prometheus.Counter
	notificationsDropped   prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sessionsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fancast_sessions_connected",
			Help: "Number of authenticated realtime sessions",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fancast_stream_rooms_active",
			Help: "Number of stream rooms with at least one viewer",
		}),

		handshakeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fancast_handshake_failures_total",
			Help: "Rejected websocket handshakes by reason",
		}, []string{"reason"}),

		roomViewers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fancast_stream_room_viewers",
			Help: "Current viewer count per stream room",
		}, []string{"stream_id"}),

		roomJoins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fancast_stream_room_joins_total",
			Help: "Total stream room join events",
		}),

		chatMessages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fancast_chat_messages_total",
			Help: "Chat messages broadcast to stream rooms",
		}),

		reactions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fancast_reactions_total",
			Help: "Reactions broadcast to stream rooms",
		}),

		tips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fancast_tips_total",
			Help: "Tip events broadcast to stream rooms",
		}),

		relayDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fancast_signalling_relayed_total",
			Help: "Relayed signalling messages by kind",
		}, []string{"kind"}),

		relayMissed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fancast_signalling_misses_total",
			Help: "Signalling messages whose target was gone, by kind",
		}, []string{"kind"}),

		notificationsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fancast_notifications_delivered_total",
			Help: "Notifications delivered to connected sessions",
		}),

		notificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fancast_notifications_dropped_total",
			Help: "Notifications dropped because the recipient was offline",
		}),
	}
}

func (p *PrometheusCollector) RecordSessionOpened() {
	if p == nil {
		return
	}
	p.sessionsConnected.Inc()
}

func (p *PrometheusCollector) RecordSessionClosed() {
	if p == nil {
		return
	}
	p.sessionsConnected.Dec()
}

func (p *PrometheusCollector) RecordHandshakeFailure(reason string) {
	if p == nil {
		return
	}
	p.handshakeFailures.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordRoomJoin(streamID domain.StreamID, viewers int) {
	if p == nil {
		return
	}
	p.roomJoins.Inc()
	p.roomViewers.WithLabelValues(string(streamID)).Set(float64(viewers))
}

func (p *PrometheusCollector) RecordRoomLeave(streamID domain.StreamID, viewers int) {
	if p == nil {
		return
	}
	if viewers == 0 {
		p.roomViewers.DeleteLabelValues(string(streamID))
		return
	}
	p.roomViewers.WithLabelValues(string(streamID)).Set(float64(viewers))
}

func (p *PrometheusCollector) RecordRoomsActive(n int) {
	if p == nil {
		return
	}
	p.roomsActive.Set(float64(n))
}

func (p *PrometheusCollector) RecordChatMessage() {
	if p == nil {
		return
	}
	p.chatMessages.Inc()
}

func (p *PrometheusCollector) RecordReaction() {
	if p == nil {
		return
	}
	p.reactions.Inc()
}

func (p *PrometheusCollector) RecordTip() {
	if p == nil {
		return
	}
	p.tips.Inc()
}

func (p *PrometheusCollector) RecordRelayDelivered(kind string) {
	if p == nil {
		return
	}
	p.relayDelivered.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) RecordRelayMiss(kind string) {
	if p == nil {
		return
	}
	p.relayMissed.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) RecordNotification(delivered bool) {
	if p == nil {
		return
	}
	if delivered {
		p.notificationsDelivered.Inc()
	} else {
		p.notificationsDropped.Inc()
	}
}
