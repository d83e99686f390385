package settlement

import (
	"fmt"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditEntryType is the direction of a credit ledger movement
type CreditEntryType string

const (
	CreditEntryTypeCredit CreditEntryType = "CREDIT" // Balance increased (overpayment, refund)
	CreditEntryTypeDebit  CreditEntryType = "DEBIT"  // Balance consumed by a payment
)

// CreditEntry is one audited movement of a customer's stored credit
type CreditEntry struct {
	ID                      uuid.UUID       `json:"id"`
	CustomerID              uuid.UUID       `json:"customer_id"`
	EntryType               CreditEntryType `json:"entry_type"`
	Amount                  decimal.Decimal `json:"amount"`
	BalanceBefore           decimal.Decimal `json:"balance_before"`
	BalanceAfter            decimal.Decimal `json:"balance_after"`
	SettlementTransactionID *uuid.UUID      `json:"settlement_transaction_id"`
	ReceivableID            *uuid.UUID      `json:"receivable_id"`
	Remark                  string          `json:"remark"`
	CreatedAt               time.Time       `json:"created_at"`
}

// CreditAccount holds a customer's stored credit. Created lazily on first credit.
type CreditAccount struct {
	shared.BaseAggregateRoot
	CustomerID    uuid.UUID       `json:"customer_id"`
	CreditBalance decimal.Decimal `json:"credit_balance"`

	// entries appended since load, persisted alongside the account
	entries []CreditEntry
	isNew   bool
}

// NewCreditAccount creates an empty credit account for a customer
func NewCreditAccount(customerID uuid.UUID) (*CreditAccount, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	return &CreditAccount{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		CreditBalance:     decimal.Zero,
		isNew:             true,
	}, nil
}

// IsNew reports whether the account has never been persisted
func (a *CreditAccount) IsNew() bool {
	return a.isNew
}

// MarkPersisted is called by the repository after the first insert
func (a *CreditAccount) MarkPersisted() {
	a.isNew = false
}

// Credit increases the balance and records a CREDIT entry
func (a *CreditAccount) Credit(amount decimal.Decimal, transactionID, receivableID *uuid.UUID, remark string) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Credit amount must be positive")
	}
	before := a.CreditBalance
	a.CreditBalance = before.Add(amount)
	a.Touch()
	a.appendEntry(CreditEntryTypeCredit, amount, before, transactionID, receivableID, remark)
	a.AddDomainEvent(NewCreditAddedEvent(a, amount, transactionID))
	return nil
}

// Debit consumes credit and records a DEBIT entry. The balance never goes negative.
func (a *CreditAccount) Debit(amount decimal.Decimal, transactionID *uuid.UUID, remark string) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Debit amount must be positive")
	}
	if amount.GreaterThan(a.CreditBalance) {
		return shared.NewDomainError(shared.ErrInsufficientBalance.Code,
			fmt.Sprintf("Credit balance %s is less than requested %s", a.CreditBalance.StringFixed(2), amount.StringFixed(2)))
	}
	before := a.CreditBalance
	a.CreditBalance = before.Sub(amount)
	a.Touch()
	a.appendEntry(CreditEntryTypeDebit, amount, before, transactionID, nil, remark)
	a.AddDomainEvent(NewCreditConsumedEvent(a, amount, transactionID))
	return nil
}

func (a *CreditAccount) appendEntry(kind CreditEntryType, amount, before decimal.Decimal, transactionID, receivableID *uuid.UUID, remark string) {
	a.entries = append(a.entries, CreditEntry{
		ID:                      uuid.New(),
		CustomerID:              a.CustomerID,
		EntryType:               kind,
		Amount:                  amount,
		BalanceBefore:           before,
		BalanceAfter:            a.CreditBalance,
		SettlementTransactionID: transactionID,
		ReceivableID:            receivableID,
		Remark:                  remark,
		CreatedAt:               time.Now(),
	})
}

// PendingEntries returns entries not yet persisted
func (a *CreditAccount) PendingEntries() []CreditEntry {
	return a.entries
}

// ClearPendingEntries is called by the repository once entries are stored
func (a *CreditAccount) ClearPendingEntries() {
	a.entries = nil
}
