package cache

import (
	"fmt"
	"io"

	settlementapp "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Guard is an InFlightGuard that owns resources
type Guard interface {
	settlementapp.InFlightGuard
	io.Closer
}

// GuardFactory picks the guard backend from configuration
type GuardFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(RedisConfig) (Guard, error)
}

// GuardFactoryOption configures a GuardFactory
type GuardFactoryOption func(*GuardFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) GuardFactoryOption {
	return func(f *GuardFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory guard. Default is true.
func WithInMemoryFallback(allow bool) GuardFactoryOption {
	return func(f *GuardFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewGuardFactory creates a new factory
func NewGuardFactory(cfg config.RedisConfig, opts ...GuardFactoryOption) *GuardFactory {
	f := &GuardFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		connect: func(c RedisConfig) (Guard, error) {
			return NewRedisGuard(c)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateGuard returns a Redis guard when Redis is configured and reachable.
// Without a Redis host the in-memory guard is used.
func (f *GuardFactory) CreateGuard() (Guard, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("Redis not configured, using in-memory in-flight guard")
		return NewInMemoryGuard(), nil
	}

	guard, err := f.connect(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("Using Redis in-flight guard", zap.String("addr", f.redisConfig.Addr()))
		return guard, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for in-flight guard but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory in-flight guard. "+
		"Concurrent duplicates across instances are then caught only by the database.",
		zap.Error(err),
	)
	return NewInMemoryGuard(), nil
}
