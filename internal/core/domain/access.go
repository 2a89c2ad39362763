package domain

import "time"

type AccessType string

const (
	AccessFree        AccessType = "free"
	AccessSubscribers AccessType = "subscribers"
	AccessPaid        AccessType = "paid"
)

// ContentAccessPolicy is attached to a post or a live stream and decides
// who may view it. PriceCents is meaningful only when Type is AccessPaid.
type ContentAccessPolicy struct {
	Type       AccessType `json:"access_type"`
	PriceCents int64      `json:"price_cents"`
	OwnerID    UserID     `json:"owner_id"`
}

func (p ContentAccessPolicy) Validate() error {
	switch p.Type {
	case AccessFree, AccessSubscribers:
		return nil
	case AccessPaid:
		if p.PriceCents <= 0 {
			return ErrInvalidPolicy
		}
		return nil
	default:
		return ErrInvalidPolicy
	}
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionPaused    SubscriptionStatus = "paused"
)

// SubscriptionRecord is the relationship between a subscriber and a
// creator. Owned by the external persistence layer; read-only here.
type SubscriptionRecord struct {
	SubscriberID       UserID
	CreatorID          UserID
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// GrantsAt reports whether the subscription confers access at t.
// The period end itself is already outside the validity window.
func (r *SubscriptionRecord) GrantsAt(t time.Time) bool {
	return r.Status == SubscriptionActive && t.Before(r.CurrentPeriodEnd)
}

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

// PurchaseRecord is evidence of a one-time payment for a single piece of
// paid content.
type PurchaseRecord struct {
	UserID      UserID
	ContentID   ContentID
	Status      PurchaseStatus
	AmountCents int64
	ProviderRef string
	CreatedAt   time.Time
}

func (r *PurchaseRecord) Completed() bool {
	return r.Status == PurchaseCompleted
}
