package settlement

import (
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type names
const (
	AggregateTypeTransaction   = "SettlementTransaction"
	AggregateTypeCreditAccount = "CreditAccount"
	AggregateTypeReceivable    = "Receivable"
)

// SettlementCompletedEvent is raised when a settlement transaction is recorded
type SettlementCompletedEvent struct {
	shared.BaseDomainEvent
	TransactionID  uuid.UUID       `json:"transaction_id"`
	DocumentNumber string          `json:"document_number"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaymentMode    PaymentMode     `json:"payment_mode"`
}

// NewSettlementCompletedEvent creates a new SettlementCompletedEvent
func NewSettlementCompletedEvent(t *Transaction) *SettlementCompletedEvent {
	return &SettlementCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SettlementCompleted", AggregateTypeTransaction, t.ID),
		TransactionID:   t.ID,
		DocumentNumber:  t.DocumentNumber,
		CustomerID:      t.CustomerID,
		TotalAmount:     t.TotalAmount,
		PaymentMode:     t.PaymentMode,
	}
}

// CreditAddedEvent is raised when stored credit increases
type CreditAddedEvent struct {
	shared.BaseDomainEvent
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	TransactionID *uuid.UUID      `json:"transaction_id"`
}

// NewCreditAddedEvent creates a new CreditAddedEvent
func NewCreditAddedEvent(a *CreditAccount, amount decimal.Decimal, transactionID *uuid.UUID) *CreditAddedEvent {
	return &CreditAddedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CreditAdded", AggregateTypeCreditAccount, a.ID),
		CustomerID:      a.CustomerID,
		Amount:          amount,
		BalanceAfter:    a.CreditBalance,
		TransactionID:   transactionID,
	}
}

// CreditConsumedEvent is raised when stored credit is applied to a payment
type CreditConsumedEvent struct {
	shared.BaseDomainEvent
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	TransactionID *uuid.UUID      `json:"transaction_id"`
}

// NewCreditConsumedEvent creates a new CreditConsumedEvent
func NewCreditConsumedEvent(a *CreditAccount, amount decimal.Decimal, transactionID *uuid.UUID) *CreditConsumedEvent {
	return &CreditConsumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CreditConsumed", AggregateTypeCreditAccount, a.ID),
		CustomerID:      a.CustomerID,
		Amount:          amount,
		BalanceAfter:    a.CreditBalance,
		TransactionID:   transactionID,
	}
}

// ReceivableSettledEvent is raised when a receivable reaches a zero balance
type ReceivableSettledEvent struct {
	shared.BaseDomainEvent
	ReceivableID  uuid.UUID `json:"receivable_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
}

// NewReceivableSettledEvent creates a new ReceivableSettledEvent
func NewReceivableSettledEvent(r *Receivable, transactionID uuid.UUID) *ReceivableSettledEvent {
	return &ReceivableSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ReceivableSettled", AggregateTypeReceivable, r.ID),
		ReceivableID:    r.ID,
		CustomerID:      r.CustomerID,
		TransactionID:   transactionID,
	}
}
