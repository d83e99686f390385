package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var fastPolicy = Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestOnConflict(t *testing.T) {
	t.Run("succeeds after transient conflicts", func(t *testing.T) {
		calls := 0
		err := OnConflict(context.Background(), fastPolicy, zap.NewNop(), "test", func(context.Context) error {
			calls++
			if calls < 3 {
				return shared.ErrConcurrencyConflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := OnConflict(context.Background(), fastPolicy, nil, "test", func(context.Context) error {
			calls++
			return shared.ErrConcurrencyConflict
		})
		assert.True(t, shared.IsConcurrencyConflict(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := OnConflict(context.Background(), fastPolicy, nil, "test", func(context.Context) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("business errors pass through unchanged", func(t *testing.T) {
		rule := shared.NewDomainError("NO_ACTIVE_SERIES", "none")
		err := OnConflict(context.Background(), fastPolicy, nil, "test", func(context.Context) error {
			return rule
		})
		assert.Same(t, rule, err)
	})

	t.Run("single attempt policy", func(t *testing.T) {
		calls := 0
		_ = OnConflict(context.Background(), Policy{MaxAttempts: 1}, nil, "test", func(context.Context) error {
			calls++
			return shared.ErrConcurrencyConflict
		})
		assert.Equal(t, 1, calls)
	})
}
