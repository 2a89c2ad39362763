package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

// PostgresSubscriptionRepository reads subscription rows owned by the
// billing service. This adapter never writes; subscription lifecycle
// belongs to billing.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

var _ ports.SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)

func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

func (r *PostgresSubscriptionRepository) FindActive(ctx context.Context, subscriberID, creatorID domain.UserID) (*domain.SubscriptionRecord, error) {
	var rec domain.SubscriptionRecord
	err := r.pool.QueryRow(ctx, `
		SELECT subscriber_id, creator_id, status, current_period_start, current_period_end
		FROM subscriptions
		WHERE subscriber_id = $1 AND creator_id = $2 AND status = 'active'
	`, subscriberID, creatorID).Scan(
		&rec.SubscriberID,
		&rec.CreatorID,
		&rec.Status,
		&rec.CurrentPeriodStart,
		&rec.CurrentPeriodEnd,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active subscription: %w", err)
	}
	return &rec, nil
}

func (r *PostgresSubscriptionRepository) ListSubscribers(ctx context.Context, creatorID domain.UserID) ([]domain.UserID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT subscriber_id
		FROM subscriptions
		WHERE creator_id = $1 AND status = 'active'
	`, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []domain.UserID
	for rows.Next() {
		var id domain.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subscribers = append(subscribers, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subscribers, nil
}
