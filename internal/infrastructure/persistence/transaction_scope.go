package persistence

import (
	"context"

	numberingapp "github.com/erp/settlement/internal/application/numbering"
	settlementapp "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/settlement"
	"gorm.io/gorm"
)

// ApplicationStatuses configures the service application statuses the gateway uses
type ApplicationStatuses struct {
	Ready   string
	Settled string
}

// GormTransactionScope implements the numbering and settlement transaction scopes
// using GORM transactions. Every repository handed to the callback shares the
// same *gorm.DB transaction handle.
type GormTransactionScope struct {
	db       *gorm.DB
	statuses ApplicationStatuses
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB, statuses ApplicationStatuses) *GormTransactionScope {
	return &GormTransactionScope{db: db, statuses: statuses}
}

// Execute runs a settlement inside a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos settlementapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.repositories(tx))
	})
}

// Numbering returns the scope the series service runs its transactions in
func (s *GormTransactionScope) Numbering() *GormNumberingScope {
	return &GormNumberingScope{parent: s}
}

func (s *GormTransactionScope) repositories(tx *gorm.DB) *gormTransactionalRepositories {
	return &gormTransactionalRepositories{tx: tx, statuses: s.statuses}
}

// GormNumberingScope adapts GormTransactionScope to the numbering application
type GormNumberingScope struct {
	parent *GormTransactionScope
}

// Execute runs series operations inside a database transaction
func (s *GormNumberingScope) Execute(ctx context.Context, fn func(repos numberingapp.TransactionalRepositories) error) error {
	return s.parent.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.parent.repositories(tx))
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx       *gorm.DB
	statuses ApplicationStatuses
}

// SeriesRepo returns the series repository scoped to the current transaction.
func (r *gormTransactionalRepositories) SeriesRepo() numbering.SeriesRepository {
	return NewGormSeriesRepository(r.tx)
}

// ReceivableRepo returns the receivable repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ReceivableRepo() settlement.ReceivableRepository {
	return NewGormReceivableRepository(r.tx)
}

// CreditAccountRepo returns the credit account repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CreditAccountRepo() settlement.CreditAccountRepository {
	return NewGormCreditAccountRepository(r.tx)
}

// TransactionRepo returns the settlement transaction repository scoped to the current transaction.
func (r *gormTransactionalRepositories) TransactionRepo() settlement.TransactionRepository {
	return NewGormTransactionRepository(r.tx)
}

// Applications returns the application gateway scoped to the current transaction.
func (r *gormTransactionalRepositories) Applications() settlement.ApplicationGateway {
	return NewGormApplicationGateway(r.tx, r.statuses.Ready, r.statuses.Settled)
}

var (
	_ settlementapp.TransactionScope          = (*GormTransactionScope)(nil)
	_ numberingapp.TransactionScope           = (*GormNumberingScope)(nil)
	_ settlementapp.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
