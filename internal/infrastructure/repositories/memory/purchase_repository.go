package memory

import (
	"context"
	"sync"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

type purchaseKey struct {
	userID    domain.UserID
	contentID domain.ContentID
}

type MemoryPurchaseRepository struct {
	purchases map[purchaseKey]*domain.PurchaseRecord
	mu        sync.RWMutex
}

func NewMemoryPurchaseRepository() *MemoryPurchaseRepository {
	return &MemoryPurchaseRepository{
		purchases: make(map[purchaseKey]*domain.PurchaseRecord),
	}
}

var _ ports.PurchaseRepository = (*MemoryPurchaseRepository)(nil)

func (r *MemoryPurchaseRepository) FindCompleted(ctx context.Context, userID domain.UserID, contentID domain.ContentID) (*domain.PurchaseRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.purchases[purchaseKey{userID, contentID}]
	if !exists || !record.Completed() {
		return nil, nil
	}
	return record, nil
}

func (r *MemoryPurchaseRepository) Record(ctx context.Context, purchase *domain.PurchaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purchases[purchaseKey{purchase.UserID, purchase.ContentID}] = purchase
	return nil
}
