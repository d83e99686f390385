package settlement

import (
	"context"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// ReceivableFilter narrows receivable listings
type ReceivableFilter struct {
	shared.Filter
	Status *ReceivableStatus
}

// ReceivableRepository persists receivables.
// ForUpdate methods lock rows in ascending ID order until the transaction ends.
type ReceivableRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Receivable, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Receivable, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter ReceivableFilter) ([]Receivable, int64, error)

	// FindByIDsForUpdate locks the given receivables of a customer. Unknown IDs and
	// receivables of other customers are not returned.
	FindByIDsForUpdate(ctx context.Context, customerID uuid.UUID, ids []uuid.UUID) ([]*Receivable, error)

	// FindPayableByCustomerForUpdate locks every UNPAID or PARTIALLY_PAID receivable of a customer
	FindPayableByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) ([]*Receivable, error)

	// CountUnpaidByCustomer counts collectable receivables that are not yet PAID
	CountUnpaidByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)

	Create(ctx context.Context, receivable *Receivable) error
	SaveWithLock(ctx context.Context, receivable *Receivable) error
}

// CreditAccountRepository persists credit accounts and their ledger entries
type CreditAccountRepository interface {
	// FindByCustomer returns shared.ErrNotFound when the customer has no account yet
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*CreditAccount, error)
	FindByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (*CreditAccount, error)

	// Save inserts new accounts, version-checks existing ones and appends pending entries
	Save(ctx context.Context, account *CreditAccount) error

	FindEntries(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]CreditEntry, int64, error)
}

// TransactionRepository persists settlement transactions with their allocations
// and payment method records.
type TransactionRepository interface {
	Create(ctx context.Context, txn *Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// FindByIdempotencyKey returns shared.ErrNotFound when the key is unused
	FindByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]Transaction, int64, error)

	// ExistsByDocumentNumber reports whether number is used, ignoring excludeID when set
	ExistsByDocumentNumber(ctx context.Context, number string, excludeID *uuid.UUID) (bool, error)
}
