package settlement

import (
	"context"

	numberingapp "github.com/erp/settlement/internal/application/numbering"
	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/settlement"
)

// TransactionScope runs a settlement inside one database transaction.
// If the function returns an error every mutation is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides every repository a settlement touches, all
// sharing the same underlying transaction. It includes the series repository so
// the document number is drawn inside the same unit of work.
type TransactionalRepositories interface {
	numberingapp.TransactionalRepositories
	ReceivableRepo() settlement.ReceivableRepository
	CreditAccountRepo() settlement.CreditAccountRepository
	TransactionRepo() settlement.TransactionRepository
	Applications() settlement.ApplicationGateway
}

// NoOpTransactionScope runs the function against plain repositories. Used in tests.
type NoOpTransactionScope struct {
	seriesRepo      numbering.SeriesRepository
	receivableRepo  settlement.ReceivableRepository
	creditRepo      settlement.CreditAccountRepository
	transactionRepo settlement.TransactionRepository
	applications    settlement.ApplicationGateway
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	seriesRepo numbering.SeriesRepository,
	receivableRepo settlement.ReceivableRepository,
	creditRepo settlement.CreditAccountRepository,
	transactionRepo settlement.TransactionRepository,
	applications settlement.ApplicationGateway,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		seriesRepo:      seriesRepo,
		receivableRepo:  receivableRepo,
		creditRepo:      creditRepo,
		transactionRepo: transactionRepo,
		applications:    applications,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// SeriesRepo returns the series repository
func (s *NoOpTransactionScope) SeriesRepo() numbering.SeriesRepository { return s.seriesRepo }

// ReceivableRepo returns the receivable repository
func (s *NoOpTransactionScope) ReceivableRepo() settlement.ReceivableRepository {
	return s.receivableRepo
}

// CreditAccountRepo returns the credit account repository
func (s *NoOpTransactionScope) CreditAccountRepo() settlement.CreditAccountRepository {
	return s.creditRepo
}

// TransactionRepo returns the settlement transaction repository
func (s *NoOpTransactionScope) TransactionRepo() settlement.TransactionRepository {
	return s.transactionRepo
}

// Applications returns the application gateway
func (s *NoOpTransactionScope) Applications() settlement.ApplicationGateway {
	return s.applications
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
