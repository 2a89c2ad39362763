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

type PostgresPostRepository struct {
	pool *pgxpool.Pool
}

var _ ports.PostRepository = (*PostgresPostRepository)(nil)

func NewPostgresPostRepository(pool *pgxpool.Pool) *PostgresPostRepository {
	return &PostgresPostRepository{pool: pool}
}

func (r *PostgresPostRepository) Create(ctx context.Context, post *domain.Post) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO posts (id, author_id, title, body, media_url, access_type, price_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, post.ID, post.AuthorID, post.Title, post.Body, post.MediaURL, post.Policy.Type, post.Policy.PriceCents, post.CreatedAt)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (r *PostgresPostRepository) GetByID(ctx context.Context, id domain.ContentID) (*domain.Post, error) {
	post, err := scanPost(r.pool.QueryRow(ctx, `
		SELECT id, author_id, title, body, media_url, access_type, price_cents, created_at
		FROM posts
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

func (r *PostgresPostRepository) ListByAuthor(ctx context.Context, authorID domain.UserID) ([]*domain.Post, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, author_id, title, body, media_url, access_type, price_cents, created_at
		FROM posts
		WHERE author_id = $1
		ORDER BY created_at DESC
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return posts, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var post domain.Post
	err := row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.Body,
		&post.MediaURL,
		&post.Policy.Type,
		&post.Policy.PriceCents,
		&post.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	post.Policy.OwnerID = post.AuthorID
	return &post, nil
}
