package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceivableStatus represents the status of a receivable
type ReceivableStatus string

const (
	ReceivableStatusUnpaid        ReceivableStatus = "UNPAID"         // Nothing paid yet
	ReceivableStatusPartiallyPaid ReceivableStatus = "PARTIALLY_PAID" // 0 < paid < total
	ReceivableStatusPaid          ReceivableStatus = "PAID"           // Balance is zero
	ReceivableStatusCancelled     ReceivableStatus = "CANCELLED"      // Voided before any payment
	ReceivableStatusRefunded      ReceivableStatus = "REFUNDED"       // Paid amount returned as credit
)

// IsValid checks if the status is a valid ReceivableStatus
func (s ReceivableStatus) IsValid() bool {
	switch s {
	case ReceivableStatusUnpaid, ReceivableStatusPartiallyPaid, ReceivableStatusPaid,
		ReceivableStatusCancelled, ReceivableStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of ReceivableStatus
func (s ReceivableStatus) String() string {
	return string(s)
}

// CanApplyPayment returns true if allocations can be applied in this status
func (s ReceivableStatus) CanApplyPayment() bool {
	return s == ReceivableStatusUnpaid || s == ReceivableStatusPartiallyPaid
}

// IsCollectable returns true for receivables that count towards a customer's
// settlement progress. Cancelled and refunded receivables are ignored.
func (s ReceivableStatus) IsCollectable() bool {
	return s == ReceivableStatusUnpaid || s == ReceivableStatusPartiallyPaid || s == ReceivableStatusPaid
}

// DeriveStatus computes the collectable status from the amounts
func DeriveStatus(totalDue, paid decimal.Decimal) ReceivableStatus {
	switch {
	case paid.GreaterThanOrEqual(totalDue):
		return ReceivableStatusPaid
	case paid.IsPositive():
		return ReceivableStatusPartiallyPaid
	default:
		return ReceivableStatusUnpaid
	}
}

// Receivable is an amount owed by a customer, trackable to zero balance
type Receivable struct {
	shared.BaseAggregateRoot
	CustomerID     uuid.UUID        `json:"customer_id"`
	ApplicationID  uuid.UUID        `json:"application_id"`
	Description    string           `json:"description"`
	TotalAmountDue decimal.Decimal  `json:"total_amount_due"`
	AmountPaid     decimal.Decimal  `json:"amount_paid"`
	Balance        decimal.Decimal  `json:"balance"`
	Status         ReceivableStatus `json:"status"`
	PaidAt         *time.Time       `json:"paid_at"`
	CancelledAt    *time.Time       `json:"cancelled_at"`
	CancelReason   string           `json:"cancel_reason"`
	RefundedAt     *time.Time       `json:"refunded_at"`
	RefundReason   string           `json:"refund_reason"`
}

// NewReceivable creates a new unpaid receivable
func NewReceivable(customerID, applicationID uuid.UUID, description string, totalDue decimal.Decimal) (*Receivable, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, shared.NewValidationError("INVALID_DESCRIPTION", "Receivable description cannot be empty")
	}
	if !totalDue.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Total amount due must be positive")
	}
	if !isMinorUnit(totalDue) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Total amount due cannot have more than 2 decimal places")
	}

	r := &Receivable{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		ApplicationID:     applicationID,
		Description:       description,
		TotalAmountDue:    totalDue,
		AmountPaid:        decimal.Zero,
		Balance:           totalDue,
		Status:            ReceivableStatusUnpaid,
	}
	return r, nil
}

// Outstanding is the amount a settlement tries to collect: the balance when positive,
// otherwise the full amount due.
func (r *Receivable) Outstanding() decimal.Decimal {
	if r.Balance.IsPositive() {
		return r.Balance
	}
	return r.TotalAmountDue
}

// ApplyAllocation adds amount to the paid total and recomputes balance and status
func (r *Receivable) ApplyAllocation(amount decimal.Decimal, transactionID uuid.UUID) error {
	if !r.Status.CanApplyPayment() {
		return shared.NewDomainError("RECEIVABLE_NOT_PAYABLE",
			fmt.Sprintf("Cannot apply payment to receivable in %s status", r.Status))
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Allocated amount must be positive")
	}
	if amount.GreaterThan(r.Outstanding()) {
		return shared.NewDomainError("EXCEEDS_OUTSTANDING",
			fmt.Sprintf("Allocated amount %s exceeds outstanding amount %s", amount.StringFixed(2), r.Outstanding().StringFixed(2)))
	}

	r.AmountPaid = r.AmountPaid.Add(amount)
	r.recompute()
	now := time.Now()
	r.UpdatedAt = now
	if r.Status == ReceivableStatusPaid {
		r.PaidAt = &now
		r.AddDomainEvent(NewReceivableSettledEvent(r, transactionID))
	}
	return nil
}

func (r *Receivable) recompute() {
	r.Balance = decimal.Max(decimal.Zero, r.TotalAmountDue.Sub(r.AmountPaid))
	r.Status = DeriveStatus(r.TotalAmountDue, r.AmountPaid)
}

// Cancel voids a receivable that has not received any payment
func (r *Receivable) Cancel(reason string) error {
	if !r.Status.CanApplyPayment() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel receivable in %s status", r.Status))
	}
	if r.AmountPaid.IsPositive() {
		return shared.NewDomainError("HAS_PAYMENTS", "Cannot cancel receivable with existing payments")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "Cancel reason is required")
	}

	now := time.Now()
	r.Status = ReceivableStatusCancelled
	r.CancelledAt = &now
	r.CancelReason = reason
	r.Balance = decimal.Zero
	r.UpdatedAt = now
	return nil
}

// Refund closes a receivable that has received payments and returns the amount
// to hand back to the customer as credit.
func (r *Receivable) Refund(reason string) (decimal.Decimal, error) {
	if r.Status != ReceivableStatusPaid && r.Status != ReceivableStatusPartiallyPaid {
		return decimal.Zero, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot refund receivable in %s status", r.Status))
	}
	if strings.TrimSpace(reason) == "" {
		return decimal.Zero, shared.NewValidationError("INVALID_REASON", "Refund reason is required")
	}

	refunded := r.AmountPaid
	now := time.Now()
	r.Status = ReceivableStatusRefunded
	r.RefundedAt = &now
	r.RefundReason = reason
	r.Balance = decimal.Zero
	r.UpdatedAt = now
	return refunded, nil
}

// isMinorUnit reports whether d has at most two decimal places
func isMinorUnit(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MinorUnitPlaces))
}
