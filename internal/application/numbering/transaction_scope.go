package numbering

import (
	"context"

	"github.com/erp/settlement/internal/domain/numbering"
)

// TransactionScope runs a function inside one database transaction.
// If the function returns an error the transaction is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the series repository bound to the current transaction
type TransactionalRepositories interface {
	SeriesRepo() numbering.SeriesRepository
}

// NoOpTransactionScope runs the function against plain repositories. Used in tests.
type NoOpTransactionScope struct {
	seriesRepo numbering.SeriesRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(seriesRepo numbering.SeriesRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{seriesRepo: seriesRepo}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// SeriesRepo returns the series repository
func (s *NoOpTransactionScope) SeriesRepo() numbering.SeriesRepository {
	return s.seriesRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
