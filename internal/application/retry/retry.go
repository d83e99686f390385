// Package retry re-runs units of work that failed with a concurrency conflict.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erp/settlement/internal/domain/shared"
	"go.uber.org/zap"
)

// Policy bounds how often and how fast a conflicting operation is retried
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns the policy used when none is configured
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// OnConflict runs fn and retries it while it returns a concurrency conflict.
// Any other error stops immediately and is returned unchanged.
func OnConflict(ctx context.Context, policy Policy, logger *zap.Logger, op string, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil || shared.IsConcurrencyConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Retrying after concurrency conflict",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(operation, policy.backOff(ctx), notify)
}
