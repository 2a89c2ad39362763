package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
)

type RedisStreamRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisStreamRepository(client *redis.Client) ports.StreamRepository {
	return &RedisStreamRepository{
		client: client,
		prefix: "fancast:stream:",
	}
}

func (r *RedisStreamRepository) streamKey(id domain.StreamID) string {
	return r.prefix + string(id)
}

func (r *RedisStreamRepository) liveStreamsKey() string {
	return r.prefix + "live"
}

func (r *RedisStreamRepository) Create(ctx context.Context, stream *domain.LiveStream) error {
	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}

	key := r.streamKey(stream.ID)
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set stream in Redis: %w", err)
	}

	if stream.Live {
		if err := r.client.SAdd(ctx, r.liveStreamsKey(), string(stream.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add stream to live set: %w", err)
		}
	}

	return nil
}

func (r *RedisStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.LiveStream, error) {
	key := r.streamKey(id)
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream from Redis: %w", err)
	}

	var stream domain.LiveStream
	if err := json.Unmarshal([]byte(data), &stream); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream: %w", err)
	}

	return &stream, nil
}

func (r *RedisStreamRepository) Update(ctx context.Context, stream *domain.LiveStream) error {
	if _, err := r.GetByID(ctx, stream.ID); err != nil {
		return err
	}

	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}

	key := r.streamKey(stream.ID)
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update stream in Redis: %w", err)
	}

	liveKey := r.liveStreamsKey()
	if stream.Live {
		if err := r.client.SAdd(ctx, liveKey, string(stream.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add stream to live set: %w", err)
		}
	} else {
		if err := r.client.SRem(ctx, liveKey, string(stream.ID)).Err(); err != nil {
			return fmt.Errorf("failed to remove stream from live set: %w", err)
		}
	}

	return nil
}

func (r *RedisStreamRepository) ListLive(ctx context.Context) ([]*domain.LiveStream, error) {
	streamIDs, err := r.client.SMembers(ctx, r.liveStreamsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get live streams from Redis: %w", err)
	}

	var streams []*domain.LiveStream
	for _, idStr := range streamIDs {
		stream, err := r.GetByID(ctx, domain.StreamID(idStr))
		if err != nil {
			// Skip streams that no longer exist
			continue
		}
		if stream.Live {
			streams = append(streams, stream)
		}
	}

	return streams, nil
}
