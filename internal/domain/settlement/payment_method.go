package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PaymentMethodType is the instrument used for part of a payment
type PaymentMethodType string

const (
	PaymentMethodCash  PaymentMethodType = "CASH"
	PaymentMethodCheck PaymentMethodType = "CHECK"
	PaymentMethodCard  PaymentMethodType = "CARD"
)

// IsValid checks if the payment method type is valid
func (t PaymentMethodType) IsValid() bool {
	switch t {
	case PaymentMethodCash, PaymentMethodCheck, PaymentMethodCard:
		return true
	}
	return false
}

// RequiresBank returns true for instruments drawn on a bank
func (t PaymentMethodType) RequiresBank() bool {
	return t == PaymentMethodCheck || t == PaymentMethodCard
}

// PaymentMethod is one declared part of a payment
type PaymentMethod struct {
	Type                  PaymentMethodType `json:"type"`
	Amount                decimal.Decimal   `json:"amount"`
	Bank                  string            `json:"bank,omitempty"`
	CheckNumber           string            `json:"check_number,omitempty"`
	CheckIssueDate        *time.Time        `json:"check_issue_date,omitempty"`
	CheckExpirationDate   *time.Time        `json:"check_expiration_date,omitempty"`
	BankTransactionNumber string            `json:"bank_transaction_number,omitempty"`
}

// ValidateShape checks type-specific fields. Bank membership is checked separately.
func (m PaymentMethod) ValidateShape(asOf time.Time) error {
	if !m.Type.IsValid() {
		return shared.NewValidationError("VALIDATION_ERROR", fmt.Sprintf("Unknown payment method type %q", m.Type))
	}
	if m.Amount.IsNegative() {
		return shared.NewValidationError("VALIDATION_ERROR", fmt.Sprintf("%s amount cannot be negative", m.Type))
	}
	if !isMinorUnit(m.Amount) {
		return shared.NewValidationError("VALIDATION_ERROR", fmt.Sprintf("%s amount cannot have more than 2 decimal places", m.Type))
	}

	switch m.Type {
	case PaymentMethodCheck:
		if strings.TrimSpace(m.CheckNumber) == "" {
			return shared.NewValidationError("VALIDATION_ERROR", "Check number is required")
		}
		if m.CheckIssueDate == nil || m.CheckExpirationDate == nil {
			return shared.NewValidationError("VALIDATION_ERROR", "Check issue and expiration dates are required")
		}
		if m.CheckExpirationDate.Before(*m.CheckIssueDate) {
			return shared.NewValidationError("VALIDATION_ERROR", "Check expiration date cannot be before its issue date")
		}
		if truncateToDay(*m.CheckExpirationDate).Before(truncateToDay(asOf)) {
			return shared.NewValidationError("VALIDATION_ERROR", fmt.Sprintf("Check %s has expired", m.CheckNumber))
		}
	case PaymentMethodCard:
		if strings.TrimSpace(m.BankTransactionNumber) == "" {
			return shared.NewValidationError("VALIDATION_ERROR", "Bank transaction number is required for card payments")
		}
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// RecognizedBanks is the set of banks accepted for checks and cards.
// Matching ignores case and surrounding whitespace.
type RecognizedBanks struct {
	names map[string]struct{}
}

// NewRecognizedBanks builds a bank list
func NewRecognizedBanks(names []string) RecognizedBanks {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if key := normalizeBank(n); key != "" {
			set[key] = struct{}{}
		}
	}
	return RecognizedBanks{names: set}
}

// Contains reports whether bank is recognized
func (b RecognizedBanks) Contains(bank string) bool {
	_, ok := b.names[normalizeBank(bank)]
	return ok
}

func normalizeBank(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Payment precondition errors
var (
	ErrNotReadyForCollection = shared.NewDomainError("NOT_READY_FOR_COLLECTION", "Application is not ready for collection")
	ErrNoReceivablesSelected = shared.NewDomainError("NO_RECEIVABLES_SELECTED", "No outstanding receivables selected")
	ErrNonPositivePayment    = shared.NewDomainError("NON_POSITIVE_PAYMENT", "Total payment amount must be greater than zero")
	ErrInvalidBank           = shared.NewDomainError("INVALID_BANK", "Bank is not recognized")
)

// ValidatePaymentMethods runs shape, amount and bank checks in that order and
// returns the declared total. A zero line is rejected only when the total is
// positive, so an all-zero payment still reports NON_POSITIVE_PAYMENT.
func ValidatePaymentMethods(methods []PaymentMethod, banks RecognizedBanks, asOf time.Time) (decimal.Decimal, error) {
	for _, m := range methods {
		if err := m.ValidateShape(asOf); err != nil {
			return decimal.Zero, err
		}
	}

	total := lo.Reduce(methods, func(acc decimal.Decimal, m PaymentMethod, _ int) decimal.Decimal {
		return acc.Add(m.Amount)
	}, decimal.Zero)
	if !total.IsPositive() {
		return decimal.Zero, ErrNonPositivePayment
	}
	// every recorded line must carry money once the payment as a whole does
	if zero, _, found := lo.FindIndexOf(methods, func(m PaymentMethod) bool { return m.Amount.IsZero() }); found {
		return decimal.Zero, shared.NewValidationError("VALIDATION_ERROR",
			fmt.Sprintf("%s amount must be greater than zero", zero.Type))
	}

	for _, m := range methods {
		if m.Type.RequiresBank() && !banks.Contains(m.Bank) {
			return decimal.Zero, shared.NewDomainError(ErrInvalidBank.Code, fmt.Sprintf("Bank %q is not recognized", m.Bank))
		}
	}
	return total, nil
}

// PaymentMethodRecord is the persisted form of a declared payment method
type PaymentMethodRecord struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	PaymentMethod
}

// ErrReceivableNotFound is returned when a selected receivable does not exist for the customer
var ErrReceivableNotFound = &shared.DomainError{Kind: shared.KindNotFound, Code: "RECEIVABLE_NOT_FOUND", Message: "Receivable not found"}

// ErrReceivableApplicationMismatch is returned when a selected receivable is
// billed to a different application than the one being collected.
var ErrReceivableApplicationMismatch = shared.NewDomainError("RECEIVABLE_APPLICATION_MISMATCH", "Receivable belongs to another application")
