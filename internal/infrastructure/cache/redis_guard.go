// Package cache holds the in-flight guards that keep two requests carrying the
// same idempotency key from settling at the same time.
package cache

import (
	"context"
	"fmt"
	"time"

	settlementapp "github.com/erp/settlement/internal/application/settlement"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries the caller's
// token, so an expired guard taken over by a later acquisition is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard implements InFlightGuard on Redis. It is suitable for
// deployments where several instances share the same customers.
type RedisGuard struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisGuard connects to Redis and verifies the connection
func NewRedisGuard(cfg RedisConfig) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisGuardWithClient(client, ""), nil
}

// NewRedisGuardWithClient creates a guard over an existing client. keyPrefix
// is prepended to every key and may be empty.
func NewRedisGuardWithClient(client redis.UniversalClient, keyPrefix string) *RedisGuard {
	return &RedisGuard{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire takes the guard with SET NX and a TTL in one round trip. Each
// successful call stores a fresh token.
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire in-flight guard: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the guard if it is still held under token
func (g *RedisGuard) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release in-flight guard: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

var _ settlementapp.InFlightGuard = (*RedisGuard)(nil)
