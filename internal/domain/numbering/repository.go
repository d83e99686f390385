package numbering

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// SeriesRepository persists numbering series
type SeriesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Series, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Series, int64, error)

	// FindByIDForUpdate loads a series holding an exclusive row lock until the
	// surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Series, error)

	// FindActiveForUpdate loads the active series effective at asOf under an exclusive
	// row lock. Returns ErrNoActiveSeries if none qualifies.
	FindActiveForUpdate(ctx context.Context, asOf time.Time) (*Series, error)

	Create(ctx context.Context, series *Series) error

	// SaveWithLock persists the series only if its stored version matches
	// the version it was loaded with.
	SaveWithLock(ctx context.Context, series *Series) error

	// DeactivateAllExcept clears the active flag on every other series
	DeactivateAllExcept(ctx context.Context, id uuid.UUID) error
}
