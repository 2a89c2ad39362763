package realtime

import (
	"encoding/json"

	"fancast/internal/core/domain"
)

// Client is a live connection handle as seen by the registry, relay and
// hub. Send must be non-blocking and safe for concurrent use.
type Client interface {
	ID() string
	Identity() domain.Identity
	Send(payload []byte) error
}

// ClientIndex resolves a connection handle by id. Implemented by Hub.
type ClientIndex interface {
	Lookup(connID string) (Client, bool)
}

func encodeEvent(event string, data interface{}) ([]byte, error) {
	return json.Marshal(domain.ServerEvent{Event: event, Data: data})
}
