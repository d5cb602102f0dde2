package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"NewsCurator/internal/ports"
	"NewsCurator/internal/urlnorm"
)

// Config holds Redis connection settings.
type Config struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// ErrEmptyAddress is returned when Redis is enabled without an address.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	connectionTimeout = 5 * time.Second
	defaultTTL        = 7 * 24 * time.Hour
)

// NewClient creates a Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// SeenCache remembers normalized URLs that were already ingested.
// Postgres stays authoritative; a miss here only costs a database lookup.
type SeenCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.SeenCache = (*SeenCache)(nil)

// NewSeenCache wraps a Redis client. A non-positive ttl uses seven days.
func NewSeenCache(client *redis.Client, ttl time.Duration) *SeenCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SeenCache{client: client, ttl: ttl}
}

func seenKey(sourceID, normalized string) string {
	return fmt.Sprintf("seen:%s:%s", sourceID, urlnorm.Hash(normalized))
}

// Seen reports which normalized URLs are cached for the source.
func (c *SeenCache) Seen(ctx context.Context, sourceID string, normalized []string) (map[string]bool, error) {
	out := make(map[string]bool, len(normalized))
	if len(normalized) == 0 {
		return out, nil
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(normalized))
	for i, u := range normalized {
		cmds[i] = pipe.Exists(ctx, seenKey(sourceID, u))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("seen lookup for %s: %w", sourceID, err)
	}
	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			out[normalized[i]] = true
		}
	}
	return out, nil
}

// Mark caches the normalized URLs for the source.
func (c *SeenCache) Mark(ctx context.Context, sourceID string, normalized []string) error {
	if len(normalized) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, u := range normalized {
		pipe.Set(ctx, seenKey(sourceID, u), "1", c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seen mark for %s: %w", sourceID, err)
	}
	return nil
}

// Forget drops cached URLs, e.g. after the news rows were deleted.
func (c *SeenCache) Forget(ctx context.Context, sourceID string, normalized []string) error {
	if len(normalized) == 0 {
		return nil
	}
	keys := make([]string, len(normalized))
	for i, u := range normalized {
		keys[i] = seenKey(sourceID, u)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("seen forget for %s: %w", sourceID, err)
	}
	return nil
}
