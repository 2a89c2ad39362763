package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a prefixed unique identifier, e.g. "stream_<uuid>".
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// NewConnectionID returns an identifier for a websocket connection handle.
func NewConnectionID() string {
	return uuid.NewString()
}
