package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

const (
	notificationChannel = "fancast:notifications"
	publishTimeout      = 3 * time.Second
)

type envelopeScope string

const (
	scopeOne    envelopeScope = "one"
	scopeMany   envelopeScope = "many"
	scopeGlobal envelopeScope = "global"
)

// envelope carries a notification across process boundaries.
type envelope struct {
	InstanceID string              `json:"instance_id"`
	Scope      envelopeScope       `json:"scope"`
	Recipients []domain.UserID     `json:"recipients,omitempty"`
	Event      domain.Notification `json:"event"`
}

// NotificationBridge mirrors notification fanout across instances via
// Redis pub/sub. Each call is delivered locally first, then published
// so sibling processes can reach recipients connected to them. Guarantees
// stay at-most-once: a dropped pub/sub message is a dropped notification.
type NotificationBridge struct {
	local      ports.NotificationFanout
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
}

var _ ports.NotificationFanout = (*NotificationBridge)(nil)

func NewNotificationBridge(local ports.NotificationFanout, client *redis.Client, instanceID string, logger *zap.SugaredLogger) *NotificationBridge {
	return &NotificationBridge{
		local:      local,
		client:     client,
		instanceID: instanceID,
		logger:     logger,
	}
}

func (b *NotificationBridge) NotifyOne(recipientID domain.UserID, event domain.Notification) error {
	if err := b.local.NotifyOne(recipientID, event); err != nil {
		return err
	}
	b.publish(envelope{
		Scope:      scopeOne,
		Recipients: []domain.UserID{recipientID},
		Event:      event,
	})
	return nil
}

func (b *NotificationBridge) NotifyMany(recipientIDs []domain.UserID, event domain.Notification) error {
	if err := b.local.NotifyMany(recipientIDs, event); err != nil {
		return err
	}
	b.publish(envelope{
		Scope:      scopeMany,
		Recipients: recipientIDs,
		Event:      event,
	})
	return nil
}

func (b *NotificationBridge) BroadcastGlobal(event domain.Notification) error {
	if err := b.local.BroadcastGlobal(event); err != nil {
		return err
	}
	b.publish(envelope{
		Scope: scopeGlobal,
		Event: event,
	})
	return nil
}

func (b *NotificationBridge) publish(env envelope) {
	env.InstanceID = b.instanceID

	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Warnw("failed to marshal notification envelope", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.client.Publish(ctx, notificationChannel, data).Err(); err != nil {
		b.logger.Warnw("failed to publish notification",
			"type", env.Event.Type,
			"error", err,
		)
	}
}

// Run subscribes to the notification channel and replays envelopes from
// sibling instances into the local fanout. Blocks until ctx is done.
func (b *NotificationBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, notificationChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("notification channel closed")
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warnw("failed to unmarshal notification envelope",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			// Skip envelopes published by this instance
			if env.InstanceID == b.instanceID {
				continue
			}

			b.deliverLocal(env)
		}
	}
}

func (b *NotificationBridge) deliverLocal(env envelope) {
	var err error
	switch env.Scope {
	case scopeOne:
		if len(env.Recipients) == 1 {
			err = b.local.NotifyOne(env.Recipients[0], env.Event)
		}
	case scopeMany:
		err = b.local.NotifyMany(env.Recipients, env.Event)
	case scopeGlobal:
		err = b.local.BroadcastGlobal(env.Event)
	default:
		b.logger.Warnw("unknown notification scope", "scope", env.Scope)
	}
	if err != nil {
		b.logger.Warnw("failed to replay notification",
			"scope", env.Scope,
			"type", env.Event.Type,
			"error", err,
		)
	}
}
