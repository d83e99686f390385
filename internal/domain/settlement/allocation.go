package settlement

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimals money is rounded to
const MinorUnitPlaces = 2

// PaymentMode classifies how available funds compare with the amount owed
type PaymentMode string

const (
	PaymentModeFull        PaymentMode = "FULL"
	PaymentModePartial     PaymentMode = "PARTIAL"
	PaymentModeOverpayment PaymentMode = "OVERPAYMENT"
)

// AllocationLine is the planned share for one receivable
type AllocationLine struct {
	ReceivableID uuid.UUID       `json:"receivable_id"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	Amount       decimal.Decimal `json:"amount"`
}

// AllocationPlan distributes available funds across receivables
type AllocationPlan struct {
	Lines            []AllocationLine `json:"lines"`
	TotalOutstanding decimal.Decimal  `json:"total_outstanding"`
	Available        decimal.Decimal  `json:"available"`
	Allocated        decimal.Decimal  `json:"allocated"`
	Remainder        decimal.Decimal  `json:"remainder"`
	Mode             PaymentMode      `json:"mode"`
}

// TotalOutstanding sums the outstanding amounts of receivables
func TotalOutstanding(receivables []*Receivable) decimal.Decimal {
	return lo.Reduce(receivables, func(acc decimal.Decimal, r *Receivable, _ int) decimal.Decimal {
		return acc.Add(r.Outstanding())
	}, decimal.Zero)
}

// PlanAllocation distributes available over receivables in the order given.
//
// When available covers the total every receivable is paid in full and the excess
// is the remainder. Otherwise each receivable gets its proportional share truncated
// to the minor unit and capped at its outstanding amount; the leftover cents go to
// the last receivable, spilling backwards only when it is already full. Allocated
// then equals available exactly.
func PlanAllocation(receivables []*Receivable, available decimal.Decimal) (AllocationPlan, error) {
	if len(receivables) == 0 {
		return AllocationPlan{}, ErrNoReceivablesSelected
	}
	if !available.IsPositive() {
		return AllocationPlan{}, ErrNonPositivePayment
	}

	plan := AllocationPlan{
		Lines: lo.Map(receivables, func(r *Receivable, _ int) AllocationLine {
			return AllocationLine{ReceivableID: r.ID, Outstanding: r.Outstanding(), Amount: decimal.Zero}
		}),
		TotalOutstanding: TotalOutstanding(receivables),
		Available:        available,
		Remainder:        decimal.Zero,
	}

	if available.GreaterThanOrEqual(plan.TotalOutstanding) {
		for i := range plan.Lines {
			plan.Lines[i].Amount = plan.Lines[i].Outstanding
		}
		plan.Allocated = plan.TotalOutstanding
		plan.Remainder = available.Sub(plan.TotalOutstanding)
		plan.Mode = PaymentModeFull
		if plan.Remainder.IsPositive() {
			plan.Mode = PaymentModeOverpayment
		}
		return plan, nil
	}

	allocated := decimal.Zero
	for i := range plan.Lines {
		line := &plan.Lines[i]
		share, _ := available.Mul(line.Outstanding).QuoRem(plan.TotalOutstanding, MinorUnitPlaces)
		line.Amount = decimal.Min(share, line.Outstanding)
		allocated = allocated.Add(line.Amount)
	}

	leftover := available.Sub(allocated)
	for i := len(plan.Lines) - 1; i >= 0 && leftover.IsPositive(); i-- {
		line := &plan.Lines[i]
		add := decimal.Min(line.Outstanding.Sub(line.Amount), leftover)
		line.Amount = line.Amount.Add(add)
		allocated = allocated.Add(add)
		leftover = leftover.Sub(add)
	}

	plan.Allocated = allocated
	plan.Mode = PaymentModePartial
	return plan, nil
}

// TouchedLines returns the lines with a positive amount
func (p AllocationPlan) TouchedLines() []AllocationLine {
	return lo.Filter(p.Lines, func(l AllocationLine, _ int) bool {
		return l.Amount.IsPositive()
	})
}

// SortForAllocation orders receivables by creation time, then ID. The last
// receivable in this order absorbs rounding leftovers.
func SortForAllocation(receivables []*Receivable) {
	slices.SortStableFunc(receivables, func(a, b *Receivable) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}
