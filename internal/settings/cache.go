package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerline/propops/internal/conf"
	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
)

// Cache holds stored rows as persisted, so encrypted values stay sealed
// while cached. Misses and backend failures both report false.
type Cache interface {
	Get(ctx context.Context, key string) (*entities.Setting, bool)
	Set(ctx context.Context, key string, s *entities.Setting)
	Delete(ctx context.Context, key string)
}

func cacheKey(category, key string) string {
	return category + "." + key
}

// NewCache builds the backend selected in cfg. The returned close function
// releases backend connections.
func NewCache(ctx context.Context, cfg conf.CacheConfig, log logger.Logger) (Cache, func() error, error) {
	ttl := cfg.TTL.Std()
	switch cfg.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisCache(client, ttl, log), client.Close, nil
	case "", "memory":
		return NewMemoryCache(ttl), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

type memoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache returns an in-process cache with the given expiry.
func NewMemoryCache(ttl time.Duration) Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &memoryCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *memoryCache) Get(_ context.Context, key string) (*entities.Setting, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	s := v.(entities.Setting)
	return &s, true
}

func (m *memoryCache) Set(_ context.Context, key string, s *entities.Setting) {
	m.c.SetDefault(key, *s)
}

func (m *memoryCache) Delete(_ context.Context, key string) {
	m.c.Delete(key)
}

const redisKeyPrefix = "propops:settings:"

type redisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    logger.Logger
}

// NewRedisCache stores rows as JSON under propops:settings:<category>.<key>.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration, log logger.Logger) Cache {
	if log == nil {
		log = logger.Discard()
	}
	return &redisCache{client: client, ttl: ttl, log: log.Module("settings.cache")}
}

func (r *redisCache) Get(ctx context.Context, key string) (*entities.Setting, bool) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("redis get failed", logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}
	var s entities.Setting
	if err := json.Unmarshal(data, &s); err != nil {
		r.log.Warn("discarding undecodable cache entry", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	return &s, true
}

func (r *redisCache) Set(ctx context.Context, key string, s *entities.Setting) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		r.log.Warn("redis set failed", logger.String("key", key), logger.Error(err))
	}
}

func (r *redisCache) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		r.log.Warn("redis delete failed", logger.String("key", key), logger.Error(err))
	}
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*entities.Setting, bool) { return nil, false }
func (nopCache) Set(context.Context, string, *entities.Setting)        {}
func (nopCache) Delete(context.Context, string)                        {}
