package realtime

import (
	"sync"

	"fancast/internal/core/domain"
)

// Registry maps live streams to the set of connections currently
// watching them. Rooms are process-local and ephemeral: created on
// first join, destroyed when the last viewer leaves, gone on restart.
// Mutations on one room serialize on that room's lock; separate rooms
// proceed in parallel.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.StreamID]*room
}

type room struct {
	mu      sync.Mutex
	members map[string]Client
	peak    int
	total   int
	closed  bool
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.StreamID]*room)}
}

// Join adds the client to the stream's room, creating the room if
// needed, and returns the resulting viewer count. Membership is
// idempotent: rejoining does not double count the viewer set, but every
// join event still increments the total-views counter.
func (r *Registry) Join(streamID domain.StreamID, c Client) int {
	for {
		r.mu.Lock()
		rm, ok := r.rooms[streamID]
		if !ok {
			rm = &room{members: make(map[string]Client)}
			r.rooms[streamID] = rm
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if rm.closed {
			// Lost a race with the leave that emptied this room;
			// the map entry is gone or about to be.
			rm.mu.Unlock()
			continue
		}
		rm.members[c.ID()] = c
		rm.total++
		if len(rm.members) > rm.peak {
			rm.peak = len(rm.members)
		}
		n := len(rm.members)
		rm.mu.Unlock()
		return n
	}
}

// Leave removes the client from the stream's room and returns the
// remaining viewer count. The room entry is deleted once empty. Leaving
// a room that does not exist, or that the client never joined, is a
// benign no-op.
func (r *Registry) Leave(streamID domain.StreamID, c Client) int {
	r.mu.RLock()
	rm, ok := r.rooms[streamID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	rm.mu.Lock()
	delete(rm.members, c.ID())
	n := len(rm.members)
	if n == 0 {
		rm.closed = true
	}
	rm.mu.Unlock()

	if n == 0 {
		r.mu.Lock()
		if cur, ok := r.rooms[streamID]; ok && cur == rm {
			delete(r.rooms, streamID)
		}
		r.mu.Unlock()
	}
	return n
}

// ViewerCount returns the current viewer count. A missing room behaves
// as an empty one.
func (r *Registry) ViewerCount(streamID domain.StreamID) int {
	r.mu.RLock()
	rm, ok := r.rooms[streamID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Members returns a snapshot of the room's connections.
func (r *Registry) Members(streamID domain.StreamID) []Client {
	return r.members(streamID, "")
}

// MembersExcept returns a snapshot of the room's connections without
// the named connection handle.
func (r *Registry) MembersExcept(streamID domain.StreamID, exceptConnID string) []Client {
	return r.members(streamID, exceptConnID)
}

func (r *Registry) members(streamID domain.StreamID, exceptConnID string) []Client {
	r.mu.RLock()
	rm, ok := r.rooms[streamID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	members := make([]Client, 0, len(rm.members))
	for id, c := range rm.members {
		if exceptConnID != "" && id == exceptConnID {
			continue
		}
		members = append(members, c)
	}
	return members
}

// Stats returns the room's counter snapshot. The second return value is
// false when the room does not exist.
func (r *Registry) Stats(streamID domain.StreamID) (domain.RoomStats, bool) {
	r.mu.RLock()
	rm, ok := r.rooms[streamID]
	r.mu.RUnlock()
	if !ok {
		return domain.RoomStats{}, false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	return domain.RoomStats{
		CurrentViewers: len(rm.members),
		PeakViewers:    rm.peak,
		TotalViewers:   rm.total,
	}, true
}

// RoomCount returns the number of rooms with at least one viewer.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
