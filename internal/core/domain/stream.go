package domain

import "time"

type StreamID string

// ContentID identifies any gated content item, post or live stream.
type ContentID string

func (id StreamID) ContentID() ContentID { return ContentID(id) }

type LiveStream struct {
	ID        StreamID            `json:"id"`
	Title     string              `json:"title"`
	CreatorID UserID              `json:"creator_id"`
	Live      bool                `json:"live"`
	Policy    ContentAccessPolicy `json:"policy"`
	StartedAt time.Time           `json:"started_at"`
	EndedAt   time.Time           `json:"ended_at,omitempty"`
}

// RoomStats is the process-local counter snapshot for a stream room.
// TotalViewers counts join events, not unique viewers, so a rejoining
// viewer inflates it; that matches the upstream counter semantics.
type RoomStats struct {
	CurrentViewers int `json:"current_viewers"`
	PeakViewers    int `json:"peak_viewers"`
	TotalViewers   int `json:"total_viewers"`
}
