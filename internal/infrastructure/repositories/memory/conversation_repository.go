package memory

import (
	"context"
	"sync"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

type MemoryConversationRepository struct {
	participants map[string]map[domain.UserID]struct{}
	mu           sync.RWMutex
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		participants: make(map[string]map[domain.UserID]struct{}),
	}
}

var _ ports.ConversationRepository = (*MemoryConversationRepository)(nil)

func (r *MemoryConversationRepository) AddParticipant(conversationID string, userID domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.participants[conversationID]
	if members == nil {
		members = make(map[domain.UserID]struct{})
		r.participants[conversationID] = members
	}
	members[userID] = struct{}{}
}

func (r *MemoryConversationRepository) IsParticipant(ctx context.Context, conversationID string, userID domain.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, exists := r.participants[conversationID]
	if !exists {
		return false, nil
	}
	_, ok := members[userID]
	return ok, nil
}
