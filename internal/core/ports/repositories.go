package ports

import (
	"context"

	"fancast/internal/core/domain"
)

type StreamRepository interface {
	Create(ctx context.Context, stream *domain.LiveStream) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.LiveStream, error)
	Update(ctx context.Context, stream *domain.LiveStream) error
	ListLive(ctx context.Context) ([]*domain.LiveStream, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	GetByID(ctx context.Context, id domain.ContentID) (*domain.Post, error)
	ListByAuthor(ctx context.Context, authorID domain.UserID) ([]*domain.Post, error)
}

// SubscriptionRepository reads subscription records owned by the
// billing layer. FindActive returns (nil, nil) when no active record
// exists; absence is never an error.
type SubscriptionRepository interface {
	FindActive(ctx context.Context, subscriberID, creatorID domain.UserID) (*domain.SubscriptionRecord, error)
	ListSubscribers(ctx context.Context, creatorID domain.UserID) ([]domain.UserID, error)
}

// PurchaseRepository reads and records one-time content purchases.
// FindCompleted returns (nil, nil) when the user never completed a
// purchase of the content item.
type PurchaseRepository interface {
	FindCompleted(ctx context.Context, userID domain.UserID, contentID domain.ContentID) (*domain.PurchaseRecord, error)
	Record(ctx context.Context, purchase *domain.PurchaseRecord) error
}

type IdentityRepository interface {
	GetByID(ctx context.Context, id domain.UserID) (*domain.Identity, error)
}

type ConversationRepository interface {
	IsParticipant(ctx context.Context, conversationID string, userID domain.UserID) (bool, error)
}

// PaymentProcessor is the opaque payment collaborator. Charge returns
// the provider's transaction reference on success.
type PaymentProcessor interface {
	Charge(ctx context.Context, payerID domain.UserID, amountCents int64, reference string) (string, error)
}
