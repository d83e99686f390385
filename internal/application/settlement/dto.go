package settlement

import (
	"time"

	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SettleCommand is a request to settle receivables of one customer.
// An empty SelectedReceivableIDs means every payable receivable of the customer.
type SettleCommand struct {
	CustomerID            uuid.UUID
	ApplicationID         uuid.UUID
	SelectedReceivableIDs []uuid.UUID
	UseCreditBalance      bool
	PaymentMethods        []settlement.PaymentMethod
	Remark                string
	IdempotencyKey        string
	ManualDocumentNumber  string

	// AsOf picks the effective series and validates check dates; zero means now
	AsOf time.Time
}

// SettlementResult is the outcome of a settlement
type SettlementResult struct {
	Transaction         *TransactionResponse  `json:"transaction"`
	CreditApplied       decimal.Decimal       `json:"credit_applied"`
	OverpaymentCredited decimal.Decimal       `json:"overpayment_credited"`
	CreditBalance       decimal.Decimal       `json:"credit_balance"`
	ApplicationAdvanced bool                  `json:"application_advanced"`
	NumberStatistics    *numbering.Statistics `json:"number_statistics,omitempty"`
	Replayed            bool                  `json:"replayed"`
}

// AllocationResponse is one allocation line in API responses
type AllocationResponse struct {
	ReceivableID    uuid.UUID       `json:"receivable_id"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
}

// PaymentMethodResponse is one recorded payment method
type PaymentMethodResponse struct {
	ID uuid.UUID `json:"id"`
	settlement.PaymentMethod
}

// TransactionResponse represents a settlement transaction in API responses
type TransactionResponse struct {
	ID                  uuid.UUID               `json:"id"`
	DocumentNumber      string                  `json:"document_number"`
	SeriesID            *uuid.UUID              `json:"series_id,omitempty"`
	CustomerID          uuid.UUID               `json:"customer_id"`
	ApplicationID       uuid.UUID               `json:"application_id"`
	TotalAmount         decimal.Decimal         `json:"total_amount"`
	DeclaredAmount      decimal.Decimal         `json:"declared_amount"`
	CreditApplied       decimal.Decimal         `json:"credit_applied"`
	AllocatedTotal      decimal.Decimal         `json:"allocated_total"`
	OverpaymentCredited decimal.Decimal         `json:"overpayment_credited"`
	PaymentMode         settlement.PaymentMode  `json:"payment_mode"`
	Description         string                  `json:"description"`
	Remark              string                  `json:"remark,omitempty"`
	IdempotencyKey      string                  `json:"idempotency_key,omitempty"`
	Allocations         []AllocationResponse    `json:"allocations"`
	PaymentMethods      []PaymentMethodResponse `json:"payment_methods"`
	SettledAt           time.Time               `json:"settled_at"`
}

// ReceivableResponse represents a receivable in API responses
type ReceivableResponse struct {
	ID             uuid.UUID                   `json:"id"`
	CustomerID     uuid.UUID                   `json:"customer_id"`
	ApplicationID  uuid.UUID                   `json:"application_id"`
	Description    string                      `json:"description"`
	TotalAmountDue decimal.Decimal             `json:"total_amount_due"`
	AmountPaid     decimal.Decimal             `json:"amount_paid"`
	Balance        decimal.Decimal             `json:"balance"`
	Status         settlement.ReceivableStatus `json:"status"`
	PaidAt         *time.Time                  `json:"paid_at,omitempty"`
	CancelledAt    *time.Time                  `json:"cancelled_at,omitempty"`
	CancelReason   string                      `json:"cancel_reason,omitempty"`
	RefundedAt     *time.Time                  `json:"refunded_at,omitempty"`
	RefundReason   string                      `json:"refund_reason,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
	Version        int                         `json:"version"`
}

// CreditBalanceResponse is a customer's stored credit
type CreditBalanceResponse struct {
	CustomerID    uuid.UUID       `json:"customer_id"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// CreditEntryResponse is one line of the credit ledger
type CreditEntryResponse struct {
	ID                      uuid.UUID                  `json:"id"`
	EntryType               settlement.CreditEntryType `json:"entry_type"`
	Amount                  decimal.Decimal            `json:"amount"`
	BalanceBefore           decimal.Decimal            `json:"balance_before"`
	BalanceAfter            decimal.Decimal            `json:"balance_after"`
	SettlementTransactionID *uuid.UUID                 `json:"settlement_transaction_id,omitempty"`
	ReceivableID            *uuid.UUID                 `json:"receivable_id,omitempty"`
	Remark                  string                     `json:"remark,omitempty"`
	CreatedAt               time.Time                  `json:"created_at"`
}

// CreateReceivableCommand registers a new amount owed
type CreateReceivableCommand struct {
	CustomerID     uuid.UUID
	ApplicationID  uuid.UUID
	Description    string
	TotalAmountDue decimal.Decimal
}

// RefundResult is a refunded receivable with the credit it produced
type RefundResult struct {
	Receivable    *ReceivableResponse `json:"receivable"`
	Refunded      decimal.Decimal     `json:"refunded"`
	CreditBalance decimal.Decimal     `json:"credit_balance"`
}

func toTransactionResponse(t *settlement.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                  t.ID,
		DocumentNumber:      t.DocumentNumber,
		SeriesID:            t.SeriesID,
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
		IdempotencyKey:      t.IdempotencyKey,
		Allocations: lo.Map(t.Allocations, func(a settlement.Allocation, _ int) AllocationResponse {
			return AllocationResponse{ReceivableID: a.ReceivableID, AmountAllocated: a.AmountAllocated}
		}),
		PaymentMethods: lo.Map(t.PaymentMethods, func(m settlement.PaymentMethodRecord, _ int) PaymentMethodResponse {
			return PaymentMethodResponse{ID: m.ID, PaymentMethod: m.PaymentMethod}
		}),
		SettledAt: t.SettledAt,
	}
}

func toReceivableResponse(r *settlement.Receivable) *ReceivableResponse {
	return &ReceivableResponse{
		ID:             r.ID,
		CustomerID:     r.CustomerID,
		ApplicationID:  r.ApplicationID,
		Description:    r.Description,
		TotalAmountDue: r.TotalAmountDue,
		AmountPaid:     r.AmountPaid,
		Balance:        r.Balance,
		Status:         r.Status,
		PaidAt:         r.PaidAt,
		CancelledAt:    r.CancelledAt,
		CancelReason:   r.CancelReason,
		RefundedAt:     r.RefundedAt,
		RefundReason:   r.RefundReason,
		CreatedAt:      r.CreatedAt,
		Version:        r.Version,
	}
}

func toCreditEntryResponse(e settlement.CreditEntry) CreditEntryResponse {
	return CreditEntryResponse{
		ID:                      e.ID,
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
