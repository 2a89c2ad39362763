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

type PostgresPurchaseRepository struct {
	pool *pgxpool.Pool
}

var _ ports.PurchaseRepository = (*PostgresPurchaseRepository)(nil)

func NewPostgresPurchaseRepository(pool *pgxpool.Pool) *PostgresPurchaseRepository {
	return &PostgresPurchaseRepository{pool: pool}
}

func (r *PostgresPurchaseRepository) FindCompleted(ctx context.Context, userID domain.UserID, contentID domain.ContentID) (*domain.PurchaseRecord, error) {
	var rec domain.PurchaseRecord
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, content_id, status, amount_cents, provider_ref, created_at
		FROM purchases
		WHERE user_id = $1 AND content_id = $2 AND status = 'completed'
	`, userID, contentID).Scan(
		&rec.UserID,
		&rec.ContentID,
		&rec.Status,
		&rec.AmountCents,
		&rec.ProviderRef,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find completed purchase: %w", err)
	}
	return &rec, nil
}

func (r *PostgresPurchaseRepository) Record(ctx context.Context, purchase *domain.PurchaseRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO purchases (user_id, content_id, status, amount_cents, provider_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, content_id)
		DO UPDATE SET status = EXCLUDED.status,
		              amount_cents = EXCLUDED.amount_cents,
		              provider_ref = EXCLUDED.provider_ref
	`, purchase.UserID, purchase.ContentID, purchase.Status, purchase.AmountCents, purchase.ProviderRef, purchase.CreatedAt)
	if err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	return nil
}
