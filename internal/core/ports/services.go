package ports

import (
	"context"

	"fancast/internal/core/domain"
)

// AccessEvaluator decides whether a viewer may see gated content.
// It never errors: absence of evidence is a denial. A nil viewer is an
// anonymous request.
type AccessEvaluator interface {
	Evaluate(ctx context.Context, policy domain.ContentAccessPolicy, viewer *domain.Identity, contentID domain.ContentID) bool
}

// CredentialVerifier authenticates the credential presented at the
// websocket handshake. It is called exactly once per connection.
type CredentialVerifier interface {
	Verify(ctx context.Context, credential string) (*domain.Identity, error)
}

// NotificationFanout delivers events to connected sessions. Delivery is
// asynchronous, at-most-once and best-effort: offline recipients are
// dropped silently. Only malformed input returns an error.
type NotificationFanout interface {
	NotifyOne(recipientID domain.UserID, event domain.Notification) error
	NotifyMany(recipientIDs []domain.UserID, event domain.Notification) error
	BroadcastGlobal(event domain.Notification) error
}
