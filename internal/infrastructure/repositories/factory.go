package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fancast/internal/core/ports"
	"fancast/internal/infrastructure/repositories/memory"
	pgrepo "fancast/internal/infrastructure/repositories/postgres"
	redisrepo "fancast/internal/infrastructure/repositories/redis"
	"fancast/pkg/config"
)

// RepositoryFactory creates repositories with fallback support. Redis
// backs the stream catalogue, Postgres backs the monetization reads,
// and memory repositories fill in when either backend is unavailable.
type RepositoryFactory struct {
	usePostgres bool
	useRedis    bool
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		usePostgres: cfg.Postgres.Enabled,
		useRedis:    cfg.Redis.Enabled,
		logger:      logger,
	}

	if cfg.Postgres.Enabled {
		pool, err := pgrepo.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			logger.Warnw("failed to connect to Postgres, falling back to memory repositories",
				"error", err,
			)
			factory.usePostgres = false
		} else {
			factory.pgPool = pool
			logger.Info("using Postgres repositories")
		}
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis stream repository")
		}
	}

	if !factory.usePostgres && !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// RedisClient exposes the shared Redis connection for the notification
// bridge. Nil when Redis is disabled or unreachable.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if f.useRedis {
		return f.redisClient
	}
	return nil
}

// CreateStreamRepository creates a stream repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateStreamRepository() ports.StreamRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisStreamRepository(f.redisClient)
	}
	return memory.NewMemoryStreamRepository()
}

// CreatePostRepository creates a post repository (Postgres or memory with fallback)
func (f *RepositoryFactory) CreatePostRepository() ports.PostRepository {
	if f.usePostgres && f.pgPool != nil {
		return pgrepo.NewPostgresPostRepository(f.pgPool)
	}
	return memory.NewMemoryPostRepository()
}

// CreateSubscriptionRepository creates a subscription repository (Postgres or memory with fallback)
func (f *RepositoryFactory) CreateSubscriptionRepository() ports.SubscriptionRepository {
	if f.usePostgres && f.pgPool != nil {
		return pgrepo.NewPostgresSubscriptionRepository(f.pgPool)
	}
	return memory.NewMemorySubscriptionRepository()
}

// CreatePurchaseRepository creates a purchase repository (Postgres or memory with fallback)
func (f *RepositoryFactory) CreatePurchaseRepository() ports.PurchaseRepository {
	if f.usePostgres && f.pgPool != nil {
		return pgrepo.NewPostgresPurchaseRepository(f.pgPool)
	}
	return memory.NewMemoryPurchaseRepository()
}

// CreateIdentityRepository creates an identity repository (always memory for now)
func (f *RepositoryFactory) CreateIdentityRepository() ports.IdentityRepository {
	// Identities are owned by the accounts service; the memory
	// repository mirrors the subset this process needs.
	return memory.NewMemoryIdentityRepository()
}

// CreateConversationRepository creates a conversation repository (always memory for now)
func (f *RepositoryFactory) CreateConversationRepository() ports.ConversationRepository {
	return memory.NewMemoryConversationRepository()
}

// Close closes backend connections if used
func (f *RepositoryFactory) Close() error {
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks backend connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.usePostgres && f.pgPool != nil {
		if err := f.pgPool.Ping(ctx); err != nil {
			return err
		}
	}
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
