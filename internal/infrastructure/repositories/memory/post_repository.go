package memory

import (
	"context"
	"fmt"
	"sync"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

type MemoryPostRepository struct {
	posts map[domain.ContentID]*domain.Post
	mu    sync.RWMutex
}

func NewMemoryPostRepository() ports.PostRepository {
	return &MemoryPostRepository{
		posts: make(map[domain.ContentID]*domain.Post),
	}
}

func (r *MemoryPostRepository) Create(ctx context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[post.ID]; exists {
		return fmt.Errorf("post already exists: %s", post.ID)
	}

	r.posts[post.ID] = post
	return nil
}

func (r *MemoryPostRepository) GetByID(ctx context.Context, id domain.ContentID) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, exists := r.posts[id]
	if !exists {
		return nil, domain.ErrPostNotFound
	}
	return post, nil
}

func (r *MemoryPostRepository) ListByAuthor(ctx context.Context, authorID domain.UserID) ([]*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var posts []*domain.Post
	for _, post := range r.posts {
		if post.AuthorID == authorID {
			posts = append(posts, post)
		}
	}
	return posts, nil
}
