package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"fancast/internal/core/domain"
)

// fakeClient records everything sent to it. Setting fail makes Send
// error, simulating a dead socket.
type fakeClient struct {
	id       string
	identity domain.Identity

	mu   sync.Mutex
	sent [][]byte
	fail bool
}

func newFakeClient(id string, userID domain.UserID) *fakeClient {
	return &fakeClient{
		id:       id,
		identity: domain.Identity{ID: userID, DisplayName: string(userID), Role: domain.RoleStudent},
	}
}

func (c *fakeClient) ID() string                { return c.id }
func (c *fakeClient) Identity() domain.Identity { return c.identity }

func (c *fakeClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("connection closed")
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeClient) setFail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

type sentEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// events decodes everything the client received.
func (c *fakeClient) events(t *testing.T) []sentEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]sentEvent, 0, len(c.sent))
	for _, raw := range c.sent {
		var ev sentEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("received frame is not a server event: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

// eventNames is events without payloads, for order assertions.
func (c *fakeClient) eventNames(t *testing.T) []string {
	t.Helper()
	events := c.events(t)
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Event)
	}
	return names
}

func (c *fakeClient) countEvent(t *testing.T, event string) int {
	t.Helper()
	n := 0
	for _, name := range c.eventNames(t) {
		if name == event {
			n++
		}
	}
	return n
}

func nopSugar() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
