package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Allocation is the portion of a payment attributed to one receivable
type Allocation struct {
	ID              uuid.UUID       `json:"id"`
	TransactionID   uuid.UUID       `json:"transaction_id"`
	ReceivableID    uuid.UUID       `json:"receivable_id"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
}

// Transaction is the immutable record of one successful settlement.
// AllocatedTotal + OverpaymentCredited always equals TotalAmount.
type Transaction struct {
	shared.BaseAggregateRoot
	DocumentNumber      string                `json:"document_number"`
	SeriesID            *uuid.UUID            `json:"series_id"`
	NumericValue        *int64                `json:"numeric_value"`
	CustomerID          uuid.UUID             `json:"customer_id"`
	ApplicationID       uuid.UUID             `json:"application_id"`
	TotalAmount         decimal.Decimal       `json:"total_amount"`
	DeclaredAmount      decimal.Decimal       `json:"declared_amount"`
	CreditApplied       decimal.Decimal       `json:"credit_applied"`
	AllocatedTotal      decimal.Decimal       `json:"allocated_total"`
	OverpaymentCredited decimal.Decimal       `json:"overpayment_credited"`
	PaymentMode         PaymentMode           `json:"payment_mode"`
	Description         string                `json:"description"`
	Remark              string                `json:"remark"`
	IdempotencyKey      string                `json:"idempotency_key"`
	RequestHash         string                `json:"-"`
	Allocations         []Allocation          `json:"allocations"`
	PaymentMethods      []PaymentMethodRecord `json:"payment_methods"`
	SettledAt           time.Time             `json:"settled_at"`
}

// TransactionParams carries everything needed to record a settlement
type TransactionParams struct {
	CustomerID     uuid.UUID
	ApplicationID  uuid.UUID
	Plan           AllocationPlan
	DeclaredAmount decimal.Decimal
	CreditApplied  decimal.Decimal
	Methods        []PaymentMethod
	IdempotencyKey string
	RequestHash    string
	Remark         string
	SettledAt      time.Time
}

// NewTransaction builds the settlement record from an allocation plan.
// The document number is assigned separately, as late as possible.
func NewTransaction(p TransactionParams) (*Transaction, error) {
	if p.CustomerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	total := p.DeclaredAmount.Add(p.CreditApplied)
	if !total.Equal(p.Plan.Available) {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Plan funds %s do not match declared %s plus credit %s",
				p.Plan.Available.StringFixed(2), p.DeclaredAmount.StringFixed(2), p.CreditApplied.StringFixed(2)))
	}

	t := &Transaction{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(),
		CustomerID:          p.CustomerID,
		ApplicationID:       p.ApplicationID,
		TotalAmount:         total,
		DeclaredAmount:      p.DeclaredAmount,
		CreditApplied:       p.CreditApplied,
		AllocatedTotal:      p.Plan.Allocated,
		OverpaymentCredited: p.Plan.Remainder,
		PaymentMode:         p.Plan.Mode,
		Remark:              strings.TrimSpace(p.Remark),
		IdempotencyKey:      p.IdempotencyKey,
		RequestHash:         p.RequestHash,
		SettledAt:           p.SettledAt,
	}

	t.Allocations = lo.Map(p.Plan.TouchedLines(), func(l AllocationLine, _ int) Allocation {
		return Allocation{
			ID:              uuid.New(),
			TransactionID:   t.ID,
			ReceivableID:    l.ReceivableID,
			AmountAllocated: l.Amount,
		}
	})
	t.PaymentMethods = lo.Map(p.Methods, func(m PaymentMethod, _ int) PaymentMethodRecord {
		return PaymentMethodRecord{ID: uuid.New(), TransactionID: t.ID, PaymentMethod: m}
	})
	t.Description = describe(p.Plan, p.CreditApplied, len(t.Allocations))
	return t, nil
}

// AssignIssuedNumber stamps the transaction with a generated document number
func (t *Transaction) AssignIssuedNumber(issued numbering.IssuedNumber) {
	seriesID := issued.SeriesID
	value := issued.NumericValue
	t.DocumentNumber = issued.Formatted
	t.SeriesID = &seriesID
	t.NumericValue = &value
	t.AddDomainEvent(NewSettlementCompletedEvent(t))
}

// AssignManualNumber stamps the transaction with an operator-entered number
func (t *Transaction) AssignManualNumber(number string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return shared.NewValidationError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	if len(number) > 50 {
		return shared.NewValidationError("INVALID_DOCUMENT_NUMBER", "Document number cannot exceed 50 characters")
	}
	t.DocumentNumber = number
	t.AddDomainEvent(NewSettlementCompletedEvent(t))
	return nil
}

// AllocationFor returns the amount allocated to a receivable, or zero
func (t *Transaction) AllocationFor(receivableID uuid.UUID) decimal.Decimal {
	a, ok := lo.Find(t.Allocations, func(a Allocation) bool { return a.ReceivableID == receivableID })
	if !ok {
		return decimal.Zero
	}
	return a.AmountAllocated
}

var amountPrinter = message.NewPrinter(language.English)

func formatAmount(d decimal.Decimal) string {
	return amountPrinter.Sprintf("%.2f", d.InexactFloat64())
}

func describe(plan AllocationPlan, creditApplied decimal.Decimal, touched int) string {
	var b strings.Builder
	switch plan.Mode {
	case PaymentModePartial:
		fmt.Fprintf(&b, "Partial payment of %s against outstanding %s on %d receivable(s)",
			formatAmount(plan.Allocated), formatAmount(plan.TotalOutstanding), touched)
	default:
		fmt.Fprintf(&b, "Full payment of %s on %d receivable(s)", formatAmount(plan.Allocated), touched)
	}
	if creditApplied.IsPositive() {
		fmt.Fprintf(&b, "; credit applied %s", formatAmount(creditApplied))
	}
	if plan.Remainder.IsPositive() {
		fmt.Fprintf(&b, "; overpayment of %s credited to customer account", formatAmount(plan.Remainder))
	}
	return b.String()
}
