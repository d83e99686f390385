package settlement

import (
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction(t *testing.T) {
	set := receivables(t, "1000", "300")
	plan, err := PlanAllocation(set, dec("1500"))
	require.NoError(t, err)

	txn, err := NewTransaction(TransactionParams{
		CustomerID:     uuid.New(),
		ApplicationID:  uuid.New(),
		Plan:           plan,
		DeclaredAmount: dec("1460"),
		CreditApplied:  dec("40"),
		Methods:        []PaymentMethod{{Type: PaymentMethodCash, Amount: dec("1460")}},
		IdempotencyKey: "key-1",
		SettledAt:      time.Now(),
	})
	require.NoError(t, err)

	assert.True(t, txn.TotalAmount.Equal(dec("1500")))
	assert.True(t, txn.AllocatedTotal.Add(txn.OverpaymentCredited).Equal(txn.TotalAmount))
	assert.Equal(t, PaymentModeOverpayment, txn.PaymentMode)
	require.Len(t, txn.Allocations, 2)
	assert.Equal(t, txn.ID, txn.Allocations[0].TransactionID)
	assert.True(t, txn.AllocationFor(set[1].ID).Equal(dec("300")))
	assert.True(t, txn.AllocationFor(uuid.New()).IsZero())
	require.Len(t, txn.PaymentMethods, 1)
	assert.Equal(t, txn.ID, txn.PaymentMethods[0].TransactionID)
	assert.Equal(t,
		"Full payment of 1,300.00 on 2 receivable(s); credit applied 40.00; overpayment of 200.00 credited to customer account",
		txn.Description)
}

func TestNewTransaction_PartialDescriptionSkipsUntouched(t *testing.T) {
	plan, err := PlanAllocation(receivables(t, "100", "100"), dec("0.01"))
	require.NoError(t, err)
	txn, err := NewTransaction(TransactionParams{
		CustomerID:     uuid.New(),
		Plan:           plan,
		DeclaredAmount: dec("0.01"),
		CreditApplied:  decimal.Zero,
	})
	require.NoError(t, err)
	assert.Len(t, txn.Allocations, 1)
	assert.Equal(t, "Partial payment of 0.01 against outstanding 200.00 on 1 receivable(s)", txn.Description)
}

func TestNewTransaction_FundsMismatch(t *testing.T) {
	plan, err := PlanAllocation(receivables(t, "100"), dec("100"))
	require.NoError(t, err)
	_, err = NewTransaction(TransactionParams{
		CustomerID:     uuid.New(),
		Plan:           plan,
		DeclaredAmount: dec("90"),
	})
	assert.Equal(t, "INVALID_STATE", shared.CodeOf(err))
}

func TestTransaction_AssignNumbers(t *testing.T) {
	plan, err := PlanAllocation(receivables(t, "100"), dec("100"))
	require.NoError(t, err)

	t.Run("issued number", func(t *testing.T) {
		txn, err := NewTransaction(TransactionParams{CustomerID: uuid.New(), Plan: plan, DeclaredAmount: dec("100")})
		require.NoError(t, err)
		issued := numbering.IssuedNumber{NumericValue: 42, Formatted: "OR-202510-000042", SeriesID: uuid.New()}
		txn.AssignIssuedNumber(issued)
		assert.Equal(t, "OR-202510-000042", txn.DocumentNumber)
		assert.Equal(t, int64(42), *txn.NumericValue)
		assert.Equal(t, issued.SeriesID, *txn.SeriesID)
		require.Len(t, txn.GetDomainEvents(), 1)
		ev := txn.GetDomainEvents()[0].(*SettlementCompletedEvent)
		assert.Equal(t, "OR-202510-000042", ev.DocumentNumber)
	})

	t.Run("manual number", func(t *testing.T) {
		txn, err := NewTransaction(TransactionParams{CustomerID: uuid.New(), Plan: plan, DeclaredAmount: dec("100")})
		require.NoError(t, err)
		require.NoError(t, txn.AssignManualNumber(" MAN-0001 "))
		assert.Equal(t, "MAN-0001", txn.DocumentNumber)
		assert.Nil(t, txn.SeriesID)
		assert.True(t, shared.IsValidation(txn.AssignManualNumber("")))
	})
}
