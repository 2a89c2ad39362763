package services

import (
	"context"
	"time"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"

	"go.uber.org/zap"
)

// AccessService evaluates content access policies against a viewer's
// relationship to the content owner. It is the single authority for
// gating decisions: the REST layer calls it when serving post/stream
// payloads and the realtime layer calls it before admitting a viewer
// to a stream room.
//
// Evaluate never returns an error. A missing subscription or purchase
// record means "not granted"; a failing lookup is logged and treated
// the same way.
type AccessService struct {
	subscriptions ports.SubscriptionRepository
	purchases     ports.PurchaseRepository
	now           func() time.Time
	logger        *zap.SugaredLogger
}

func NewAccessService(
	subscriptions ports.SubscriptionRepository,
	purchases ports.PurchaseRepository,
	logger *zap.SugaredLogger,
) *AccessService {
	return &AccessService{
		subscriptions: subscriptions,
		purchases:     purchases,
		now:           time.Now,
		logger:        logger,
	}
}

// WithClock overrides the time source. Used by tests for validity
// window boundaries.
func (s *AccessService) WithClock(now func() time.Time) *AccessService {
	s.now = now
	return s
}

// Evaluate applies the gating rules in order, first match wins:
// free content is universally visible, anonymous viewers never pass a
// gated check, owners always see their own content, subscriber content
// requires an active unexpired subscription, and paid content accepts
// either an active subscription or a completed one-time purchase.
func (s *AccessService) Evaluate(ctx context.Context, policy domain.ContentAccessPolicy, viewer *domain.Identity, contentID domain.ContentID) bool {
	if policy.Type == domain.AccessFree {
		return true
	}

	if viewer == nil {
		return false
	}

	if viewer.ID == policy.OwnerID {
		return true
	}

	switch policy.Type {
	case domain.AccessSubscribers:
		return s.hasActiveSubscription(ctx, viewer.ID, policy.OwnerID)

	case domain.AccessPaid:
		// Subscription supersedes one-time purchase.
		if s.hasActiveSubscription(ctx, viewer.ID, policy.OwnerID) {
			return true
		}
		return s.hasCompletedPurchase(ctx, viewer.ID, contentID)

	default:
		return false
	}
}

func (s *AccessService) hasActiveSubscription(ctx context.Context, subscriberID, creatorID domain.UserID) bool {
	record, err := s.subscriptions.FindActive(ctx, subscriberID, creatorID)
	if err != nil {
		s.logger.Warnw("subscription lookup failed, denying access",
			"subscriber_id", subscriberID,
			"creator_id", creatorID,
			"error", err,
		)
		return false
	}
	if record == nil {
		return false
	}
	return record.GrantsAt(s.now())
}

func (s *AccessService) hasCompletedPurchase(ctx context.Context, userID domain.UserID, contentID domain.ContentID) bool {
	record, err := s.purchases.FindCompleted(ctx, userID, contentID)
	if err != nil {
		s.logger.Warnw("purchase lookup failed, denying access",
			"user_id", userID,
			"content_id", contentID,
			"error", err,
		)
		return false
	}
	return record != nil && record.Completed()
}
