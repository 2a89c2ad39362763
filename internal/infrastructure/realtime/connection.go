package realtime

import (
	"errors"
	"sync"
	"time"

	"fancast/internal/core/domain"
	"fancast/pkg/utils"

	"github.com/gorilla/websocket"
)

// ConnectionConfig carries the transport liveness knobs. Liveness is
// owned by the transport layer, not by the signalling exchanges.
type ConnectionConfig struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   128,
	}
}

// Connection wraps a websocket and coordinates outbound writes through a
// buffered channel, so fan-out callers never block on a slow client.
// It is tagged with the authenticated identity at construction and is
// safe for concurrent use.
type Connection struct {
	id       string
	identity domain.Identity

	ws     *websocket.Conn
	cfg    ConnectionConfig
	send   chan []byte
	once   sync.Once
	closed chan struct{}
}

func NewConnection(identity domain.Identity, ws *websocket.Conn, cfg ConnectionConfig) *Connection {
	c := &Connection{
		id:       utils.NewConnectionID(),
		identity: identity,
		ws:       ws,
		cfg:      cfg,
		send:     make(chan []byte, cfg.SendBuffer),
		closed:   make(chan struct{}),
	}

	ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(cfg.PongTimeout))
	})

	return c
}

func (c *Connection) ID() string                { return c.id }
func (c *Connection) Identity() domain.Identity { return c.identity }

// Start launches the write loop. It must be called exactly once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. If the client is slow and the
// buffer is full, the connection is closed to keep backpressure bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// ReadMessage blocks for the next inbound frame, renewing the read
// deadline on every received message.
func (c *Connection) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	return data, nil
}

// Close terminates the connection and stops the write loop. Safe to
// call multiple times.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(c.cfg.WriteTimeout))
		_ = c.ws.Close()
	})
}

// CloseNotify reports connection shutdown to the read side.
func (c *Connection) CloseNotify() <-chan struct{} {
	return c.closed
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
