package memory

import (
	"context"
	"fmt"
	"sync"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

type MemoryStreamRepository struct {
	streams map[domain.StreamID]*domain.LiveStream
	mu      sync.RWMutex
}

func NewMemoryStreamRepository() ports.StreamRepository {
	return &MemoryStreamRepository{
		streams: make(map[domain.StreamID]*domain.LiveStream),
	}
}

func (r *MemoryStreamRepository) Create(ctx context.Context, stream *domain.LiveStream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[stream.ID]; exists {
		return fmt.Errorf("stream already exists: %s", stream.ID)
	}

	r.streams[stream.ID] = stream
	return nil
}

func (r *MemoryStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.LiveStream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, exists := r.streams[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}

	return stream, nil
}

func (r *MemoryStreamRepository) Update(ctx context.Context, stream *domain.LiveStream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[stream.ID]; !exists {
		return domain.ErrStreamNotFound
	}

	r.streams[stream.ID] = stream
	return nil
}

func (r *MemoryStreamRepository) ListLive(ctx context.Context) ([]*domain.LiveStream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var live []*domain.LiveStream
	for _, stream := range r.streams {
		if stream.Live {
			live = append(live, stream)
		}
	}

	return live, nil
}
