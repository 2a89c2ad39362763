package memory

import (
	"context"
	"sync"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

type MemoryIdentityRepository struct {
	identities map[domain.UserID]*domain.Identity
	mu         sync.RWMutex
}

func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{
		identities: make(map[domain.UserID]*domain.Identity),
	}
}

var _ ports.IdentityRepository = (*MemoryIdentityRepository)(nil)

func (r *MemoryIdentityRepository) Put(identity *domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[identity.ID] = identity
}

func (r *MemoryIdentityRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, exists := r.identities[id]
	if !exists {
		return nil, domain.ErrIdentityNotFound
	}
	return identity, nil
}
