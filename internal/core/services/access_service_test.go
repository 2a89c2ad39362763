package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"fancast/internal/core/domain"
	"fancast/internal/infrastructure/repositories/memory"
)

type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) FindActive(ctx context.Context, subscriberID, creatorID domain.UserID) (*domain.SubscriptionRecord, error) {
	args := m.Called(ctx, subscriberID, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SubscriptionRecord), args.Error(1)
}

func (m *MockSubscriptionRepository) ListSubscribers(ctx context.Context, creatorID domain.UserID) ([]domain.UserID, error) {
	args := m.Called(ctx, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UserID), args.Error(1)
}

type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) FindCompleted(ctx context.Context, userID domain.UserID, contentID domain.ContentID) (*domain.PurchaseRecord, error) {
	args := m.Called(ctx, userID, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PurchaseRecord), args.Error(1)
}

func (m *MockPurchaseRepository) Record(ctx context.Context, purchase *domain.PurchaseRecord) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func newAccessFixture() (*AccessService, *memory.MemorySubscriptionRepository, *memory.MemoryPurchaseRepository) {
	subs := memory.NewMemorySubscriptionRepository()
	purchases := memory.NewMemoryPurchaseRepository()
	svc := NewAccessService(subs, purchases, testLogger())
	return svc, subs, purchases
}

func TestAccessService_FreeContentVisibleToAnyone(t *testing.T) {
	svc, _, _ := newAccessFixture()
	policy := domain.ContentAccessPolicy{Type: domain.AccessFree, OwnerID: "creator-1"}

	viewer := &domain.Identity{ID: "viewer-1", Role: domain.RoleStudent}
	assert.True(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))
	assert.True(t, svc.Evaluate(context.Background(), policy, nil, "content-1"))
}

func TestAccessService_AnonymousNeverPassesGatedCheck(t *testing.T) {
	svc, subs, _ := newAccessFixture()

	// Even with a matching subscription on record, a nil viewer is
	// denied before any lookup happens.
	subs.Put(&domain.SubscriptionRecord{
		SubscriberID:     "viewer-1",
		CreatorID:        "creator-1",
		Status:           domain.SubscriptionActive,
		CurrentPeriodEnd: time.Now().Add(time.Hour),
	})

	subscribers := domain.ContentAccessPolicy{Type: domain.AccessSubscribers, OwnerID: "creator-1"}
	paid := domain.ContentAccessPolicy{Type: domain.AccessPaid, PriceCents: 500, OwnerID: "creator-1"}

	assert.False(t, svc.Evaluate(context.Background(), subscribers, nil, "content-1"))
	assert.False(t, svc.Evaluate(context.Background(), paid, nil, "content-1"))
}

func TestAccessService_OwnerAlwaysSeesOwnContent(t *testing.T) {
	svc, _, _ := newAccessFixture()
	owner := &domain.Identity{ID: "creator-1", Role: domain.RoleCreator}

	for _, accessType := range []domain.AccessType{domain.AccessSubscribers, domain.AccessPaid} {
		policy := domain.ContentAccessPolicy{Type: accessType, PriceCents: 500, OwnerID: "creator-1"}
		assert.True(t, svc.Evaluate(context.Background(), policy, owner, "content-1"), "owner denied for %s", accessType)
	}
}

func TestAccessService_SubscriberContent(t *testing.T) {
	svc, subs, _ := newAccessFixture()
	policy := domain.ContentAccessPolicy{Type: domain.AccessSubscribers, OwnerID: "creator-1"}
	viewer := &domain.Identity{ID: "viewer-1", Role: domain.RoleStudent}

	// No subscription on record.
	assert.False(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))

	subs.Put(&domain.SubscriptionRecord{
		SubscriberID:     "viewer-1",
		CreatorID:        "creator-1",
		Status:           domain.SubscriptionActive,
		CurrentPeriodEnd: time.Now().Add(time.Hour),
	})
	assert.True(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))
}

func TestAccessService_SubscriptionExpiryBoundary(t *testing.T) {
	svc, subs, _ := newAccessFixture()
	policy := domain.ContentAccessPolicy{Type: domain.AccessSubscribers, OwnerID: "creator-1"}
	viewer := &domain.Identity{ID: "viewer-1", Role: domain.RoleStudent}

	periodEnd := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	subs.Put(&domain.SubscriptionRecord{
		SubscriberID:     "viewer-1",
		CreatorID:        "creator-1",
		Status:           domain.SubscriptionActive,
		CurrentPeriodEnd: periodEnd,
	})

	svc.WithClock(func() time.Time { return periodEnd.Add(-time.Second) })
	assert.True(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))

	// The period end itself is already outside the validity window.
	svc.WithClock(func() time.Time { return periodEnd })
	assert.False(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))

	svc.WithClock(func() time.Time { return periodEnd.Add(time.Second) })
	assert.False(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))
}

func TestAccessService_PaidContentViaSubscription(t *testing.T) {
	svc, subs, _ := newAccessFixture()
	policy := domain.ContentAccessPolicy{Type: domain.AccessPaid, PriceCents: 500, OwnerID: "creator-1"}
	viewer := &domain.Identity{ID: "viewer-1", Role: domain.RoleStudent}

	subs.Put(&domain.SubscriptionRecord{
		SubscriberID:     "viewer-1",
		CreatorID:        "creator-1",
		Status:           domain.SubscriptionActive,
		CurrentPeriodEnd: time.Now().Add(time.Hour),
	})

	assert.True(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))
}

func TestAccessService_PaidContentViaPurchase(t *testing.T) {
	svc, _, purchases := newAccessFixture()
	policy := domain.ContentAccessPolicy{Type: domain.AccessPaid, PriceCents: 500, OwnerID: "creator-1"}
	viewer := &domain.Identity{ID: "viewer-1", Role: domain.RoleStudent}

	// Denied first, granted after the purchase completes. This is how
	// a viewer unlocks a stream mid-broadcast: the next evaluation sees
	// the new record.
	assert.False(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))

	err := purchases.Record(context.Background(), &domain.PurchaseRecord{
		UserID:      "viewer-1",
		ContentID:   "content-1",
		Status:      domain.PurchaseCompleted,
		AmountCents: 500,
		CreatedAt:   time.Now(),
	})
	assert.NoError(t, err)

	assert.True(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))
}

func TestAccessService_PendingPurchaseDoesNotGrant(t *testing.T) {
	svc, _, purchases := newAccessFixture()
	policy := domain.ContentAccessPolicy{Type: domain.AccessPaid, PriceCents: 500, OwnerID: "creator-1"}
	viewer := &domain.Identity{ID: "viewer-1", Role: domain.RoleStudent}

	err := purchases.Record(context.Background(), &domain.PurchaseRecord{
		UserID:    "viewer-1",
		ContentID: "content-1",
		Status:    domain.PurchasePending,
	})
	assert.NoError(t, err)

	assert.False(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))
}

func TestAccessService_PurchaseForOtherContentDoesNotGrant(t *testing.T) {
	svc, _, purchases := newAccessFixture()
	policy := domain.ContentAccessPolicy{Type: domain.AccessPaid, PriceCents: 500, OwnerID: "creator-1"}
	viewer := &domain.Identity{ID: "viewer-1", Role: domain.RoleStudent}

	err := purchases.Record(context.Background(), &domain.PurchaseRecord{
		UserID:    "viewer-1",
		ContentID: "other-content",
		Status:    domain.PurchaseCompleted,
	})
	assert.NoError(t, err)

	assert.False(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))
}

func TestAccessService_LookupFailureDenies(t *testing.T) {
	subs := new(MockSubscriptionRepository)
	purchases := new(MockPurchaseRepository)
	svc := NewAccessService(subs, purchases, testLogger())

	subs.On("FindActive", mock.Anything, domain.UserID("viewer-1"), domain.UserID("creator-1")).
		Return(nil, errors.New("backend down"))
	purchases.On("FindCompleted", mock.Anything, domain.UserID("viewer-1"), domain.ContentID("content-1")).
		Return(nil, errors.New("backend down"))

	viewer := &domain.Identity{ID: "viewer-1", Role: domain.RoleStudent}

	subscribers := domain.ContentAccessPolicy{Type: domain.AccessSubscribers, OwnerID: "creator-1"}
	assert.False(t, svc.Evaluate(context.Background(), subscribers, viewer, "content-1"))

	paid := domain.ContentAccessPolicy{Type: domain.AccessPaid, PriceCents: 500, OwnerID: "creator-1"}
	assert.False(t, svc.Evaluate(context.Background(), paid, viewer, "content-1"))

	subs.AssertExpectations(t)
	purchases.AssertExpectations(t)
}

func TestAccessService_UnknownPolicyTypeDenies(t *testing.T) {
	svc, _, _ := newAccessFixture()
	viewer := &domain.Identity{ID: "viewer-1", Role: domain.RoleStudent}

	policy := domain.ContentAccessPolicy{Type: "vip", OwnerID: "creator-1"}
	assert.False(t, svc.Evaluate(context.Background(), policy, viewer, "content-1"))
}
