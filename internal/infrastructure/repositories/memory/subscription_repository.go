package memory

import (
	"context"
	"sync"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

type subscriptionKey struct {
	subscriberID domain.UserID
	creatorID    domain.UserID
}

type MemorySubscriptionRepository struct {
	subscriptions map[subscriptionKey]*domain.SubscriptionRecord
	mu            sync.RWMutex
}

func NewMemorySubscriptionRepository() *MemorySubscriptionRepository {
	return &MemorySubscriptionRepository{
		subscriptions: make(map[subscriptionKey]*domain.SubscriptionRecord),
	}
}

var _ ports.SubscriptionRepository = (*MemorySubscriptionRepository)(nil)

// Put inserts or replaces a subscription record. Used by tests and the
// dev seed; production records are owned by the billing layer.
func (r *MemorySubscriptionRepository) Put(record *domain.SubscriptionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions[subscriptionKey{record.SubscriberID, record.CreatorID}] = record
}

func (r *MemorySubscriptionRepository) FindActive(ctx context.Context, subscriberID, creatorID domain.UserID) (*domain.SubscriptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.subscriptions[subscriptionKey{subscriberID, creatorID}]
	if !exists || record.Status != domain.SubscriptionActive {
		return nil, nil
	}
	return record, nil
}

func (r *MemorySubscriptionRepository) ListSubscribers(ctx context.Context, creatorID domain.UserID) ([]domain.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var subscribers []domain.UserID
	for key, record := range r.subscriptions {
		if key.creatorID == creatorID && record.Status == domain.SubscriptionActive {
			subscribers = append(subscribers, key.subscriberID)
		}
	}
	return subscribers, nil
}
