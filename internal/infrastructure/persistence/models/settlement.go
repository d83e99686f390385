package models

import (
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceivableModel is the persistence model for the Receivable aggregate root.
type ReceivableModel struct {
	AggregateModel
	CustomerID     uuid.UUID                   `gorm:"type:uuid;not null;index"`
	ApplicationID  uuid.UUID                   `gorm:"type:uuid;index"`
	Description    string                      `gorm:"type:varchar(500);not null"`
	TotalAmountDue decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	AmountPaid     decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	Balance        decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	Status         settlement.ReceivableStatus `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CancelReason   string `gorm:"type:varchar(500)"`
	RefundedAt     *time.Time
	RefundReason   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ReceivableModel) TableName() string {
	return "receivables"
}

// ToDomain converts the persistence model to a domain Receivable
func (m *ReceivableModel) ToDomain() *settlement.Receivable {
	return &settlement.Receivable{
		BaseAggregateRoot: m.root(),
		CustomerID:        m.CustomerID,
		ApplicationID:     m.ApplicationID,
		Description:       m.Description,
		TotalAmountDue:    m.TotalAmountDue,
		AmountPaid:        m.AmountPaid,
		Balance:           m.Balance,
		Status:            m.Status,
		PaidAt:            m.PaidAt,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
		RefundedAt:        m.RefundedAt,
		RefundReason:      m.RefundReason,
	}
}

// FromDomain populates the persistence model from a domain Receivable
func (m *ReceivableModel) FromDomain(r *settlement.Receivable) {
	m.setRoot(r.BaseAggregateRoot)
	m.CustomerID = r.CustomerID
	m.ApplicationID = r.ApplicationID
	m.Description = r.Description
	m.TotalAmountDue = r.TotalAmountDue
	m.AmountPaid = r.AmountPaid
	m.Balance = r.Balance
	m.Status = r.Status
	m.PaidAt = r.PaidAt
	m.CancelledAt = r.CancelledAt
	m.CancelReason = r.CancelReason
	m.RefundedAt = r.RefundedAt
	m.RefundReason = r.RefundReason
}

// ReceivableModelFromDomain creates a new persistence model from a domain Receivable
func ReceivableModelFromDomain(r *settlement.Receivable) *ReceivableModel {
	m := &ReceivableModel{}
	m.FromDomain(r)
	return m
}

// CreditAccountModel is the persistence model for a customer's stored credit.
type CreditAccountModel struct {
	AggregateModel
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	CreditBalance decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (CreditAccountModel) TableName() string {
	return "credit_accounts"
}

// ToDomain converts the persistence model to a domain CreditAccount
func (m *CreditAccountModel) ToDomain() *settlement.CreditAccount {
	return &settlement.CreditAccount{
		BaseAggregateRoot: m.root(),
		CustomerID:        m.CustomerID,
		CreditBalance:     m.CreditBalance,
	}
}

// CreditAccountModelFromDomain creates a new persistence model from a domain CreditAccount
func CreditAccountModelFromDomain(a *settlement.CreditAccount) *CreditAccountModel {
	m := &CreditAccountModel{
		CustomerID:    a.CustomerID,
		CreditBalance: a.CreditBalance,
	}
	m.setRoot(a.BaseAggregateRoot)
	return m
}

// CreditEntryModel is one append-only line of the credit ledger.
type CreditEntryModel struct {
	ID                      uuid.UUID                  `gorm:"type:uuid;primary_key"`
	CustomerID              uuid.UUID                  `gorm:"type:uuid;not null;index"`
	EntryType               settlement.CreditEntryType `gorm:"type:varchar(10);not null"`
	Amount                  decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	BalanceBefore           decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	BalanceAfter            decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	SettlementTransactionID *uuid.UUID                 `gorm:"type:uuid;index"`
	ReceivableID            *uuid.UUID                 `gorm:"type:uuid"`
	Remark                  string                     `gorm:"type:varchar(500)"`
	CreatedAt               time.Time                  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CreditEntryModel) TableName() string {
	return "credit_entries"
}

// ToDomain converts the persistence model to a domain CreditEntry
func (m *CreditEntryModel) ToDomain() settlement.CreditEntry {
	return settlement.CreditEntry{
		ID:                      m.ID,
		CustomerID:              m.CustomerID,
		EntryType:               m.EntryType,
		Amount:                  m.Amount,
		BalanceBefore:           m.BalanceBefore,
		BalanceAfter:            m.BalanceAfter,
		SettlementTransactionID: m.SettlementTransactionID,
		ReceivableID:            m.ReceivableID,
		Remark:                  m.Remark,
		CreatedAt:               m.CreatedAt,
	}
}

// CreditEntryModelFromDomain creates a new persistence model from a domain CreditEntry
func CreditEntryModelFromDomain(e settlement.CreditEntry) *CreditEntryModel {
	return &CreditEntryModel{
		ID:                      e.ID,
		CustomerID:              e.CustomerID,
		EntryType:               e.EntryType,
		Amount:                  e.Amount,
		BalanceBefore:           e.BalanceBefore,
		BalanceAfter:            e.BalanceAfter,
		SettlementTransactionID: e.SettlementTransactionID,
		ReceivableID:            e.ReceivableID,
		Remark:                  e.Remark,
		CreatedAt:               e.CreatedAt,
	}
}

// SettlementTransactionModel is the persistence model for a settlement transaction.
// document_number and idempotency_key are unique.
type SettlementTransactionModel struct {
	AggregateModel
	DocumentNumber      string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	SeriesID            *uuid.UUID `gorm:"type:uuid;index"`
	NumericValue        *int64
	CustomerID          uuid.UUID                   `gorm:"type:uuid;not null;index"`
	ApplicationID       uuid.UUID                   `gorm:"type:uuid;index"`
	TotalAmount         decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	DeclaredAmount      decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	CreditApplied       decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	AllocatedTotal      decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	OverpaymentCredited decimal.Decimal             `gorm:"type:decimal(18,2);not null"`
	PaymentMode         settlement.PaymentMode      `gorm:"type:varchar(20);not null"`
	Description         string                      `gorm:"type:varchar(500);not null"`
	Remark              string                      `gorm:"type:text"`
	IdempotencyKey      *string                     `gorm:"type:varchar(100);uniqueIndex"`
	RequestHash         string                      `gorm:"type:varchar(64)"`
	SettledAt           time.Time                   `gorm:"not null"`
	Allocations         []SettlementAllocationModel `gorm:"foreignKey:TransactionID"`
	PaymentMethods      []PaymentMethodModel        `gorm:"foreignKey:TransactionID"`
}

// TableName returns the table name for GORM
func (SettlementTransactionModel) TableName() string {
	return "settlement_transactions"
}

// ToDomain converts the persistence model to a domain Transaction
func (m *SettlementTransactionModel) ToDomain() *settlement.Transaction {
	t := &settlement.Transaction{
		BaseAggregateRoot:   m.root(),
		DocumentNumber:      m.DocumentNumber,
		SeriesID:            m.SeriesID,
		NumericValue:        m.NumericValue,
		CustomerID:          m.CustomerID,
		ApplicationID:       m.ApplicationID,
		TotalAmount:         m.TotalAmount,
		DeclaredAmount:      m.DeclaredAmount,
		CreditApplied:       m.CreditApplied,
		AllocatedTotal:      m.AllocatedTotal,
		OverpaymentCredited: m.OverpaymentCredited,
		PaymentMode:         m.PaymentMode,
		Description:         m.Description,
		Remark:              m.Remark,
		RequestHash:         m.RequestHash,
		SettledAt:           m.SettledAt,
	}
	if m.IdempotencyKey != nil {
		t.IdempotencyKey = *m.IdempotencyKey
	}
	t.Allocations = make([]settlement.Allocation, len(m.Allocations))
	for i, a := range m.Allocations {
		t.Allocations[i] = a.ToDomain()
	}
	t.PaymentMethods = make([]settlement.PaymentMethodRecord, len(m.PaymentMethods))
	for i, p := range m.PaymentMethods {
		t.PaymentMethods[i] = p.ToDomain()
	}
	return t
}

// SettlementTransactionModelFromDomain creates a new persistence model from a domain Transaction
func SettlementTransactionModelFromDomain(t *settlement.Transaction) *SettlementTransactionModel {
	m := &SettlementTransactionModel{
		DocumentNumber:      t.DocumentNumber,
		SeriesID:            t.SeriesID,
		NumericValue:        t.NumericValue,
		CustomerID:          t.CustomerID,
		ApplicationID:       t.ApplicationID,
		TotalAmount:         t.TotalAmount,
		DeclaredAmount:      t.DeclaredAmount,
		CreditApplied:       t.CreditApplied,
		AllocatedTotal:      t.AllocatedTotal,
		OverpaymentCredited: t.OverpaymentCredited,
		PaymentMode:         t.PaymentMode,
		Description:         t.Description,
		Remark:              t.Remark,
		RequestHash:         t.RequestHash,
		SettledAt:           t.SettledAt,
	}
	m.setRoot(t.BaseAggregateRoot)
	if t.IdempotencyKey != "" {
		key := t.IdempotencyKey
		m.IdempotencyKey = &key
	}
	m.Allocations = make([]SettlementAllocationModel, len(t.Allocations))
	for i, a := range t.Allocations {
		m.Allocations[i] = SettlementAllocationModel{
			ID:              a.ID,
			TransactionID:   t.ID,
			ReceivableID:    a.ReceivableID,
			AmountAllocated: a.AmountAllocated,
		}
	}
	m.PaymentMethods = make([]PaymentMethodModel, len(t.PaymentMethods))
	for i, p := range t.PaymentMethods {
		m.PaymentMethods[i] = PaymentMethodModelFromDomain(t.ID, p)
	}
	return m
}

// SettlementAllocationModel is the amount of a settlement applied to one receivable.
type SettlementAllocationModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	TransactionID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ReceivableID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	AmountAllocated decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (SettlementAllocationModel) TableName() string {
	return "settlement_allocations"
}

// ToDomain converts the persistence model to a domain Allocation
func (m *SettlementAllocationModel) ToDomain() settlement.Allocation {
	return settlement.Allocation{
		ID:              m.ID,
		TransactionID:   m.TransactionID,
		ReceivableID:    m.ReceivableID,
		AmountAllocated: m.AmountAllocated,
	}
}

// PaymentMethodModel is one declared payment method of a settlement.
type PaymentMethodModel struct {
	ID                    uuid.UUID                    `gorm:"type:uuid;primary_key"`
	TransactionID         uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Type                  settlement.PaymentMethodType `gorm:"type:varchar(10);not null"`
	Amount                decimal.Decimal              `gorm:"type:decimal(18,2);not null"`
	Bank                  string                       `gorm:"type:varchar(100)"`
	CheckNumber           string                       `gorm:"type:varchar(50)"`
	CheckIssueDate        *time.Time
	CheckExpirationDate   *time.Time
	BankTransactionNumber string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (PaymentMethodModel) TableName() string {
	return "settlement_payment_methods"
}

// ToDomain converts the persistence model to a domain PaymentMethodRecord
func (m *PaymentMethodModel) ToDomain() settlement.PaymentMethodRecord {
	return settlement.PaymentMethodRecord{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		PaymentMethod: settlement.PaymentMethod{
			Type:                  m.Type,
			Amount:                m.Amount,
			Bank:                  m.Bank,
			CheckNumber:           m.CheckNumber,
			CheckIssueDate:        m.CheckIssueDate,
			CheckExpirationDate:   m.CheckExpirationDate,
			BankTransactionNumber: m.BankTransactionNumber,
		},
	}
}

// PaymentMethodModelFromDomain creates a new persistence model from a domain PaymentMethodRecord
func PaymentMethodModelFromDomain(transactionID uuid.UUID, p settlement.PaymentMethodRecord) PaymentMethodModel {
	return PaymentMethodModel{
		ID:                    p.ID,
		TransactionID:         transactionID,
		Type:                  p.Type,
		Amount:                p.Amount,
		Bank:                  p.Bank,
		CheckNumber:           p.CheckNumber,
		CheckIssueDate:        p.CheckIssueDate,
		CheckExpirationDate:   p.CheckExpirationDate,
		BankTransactionNumber: p.BankTransactionNumber,
	}
}
