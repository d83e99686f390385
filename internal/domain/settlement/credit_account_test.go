package settlement

import (
	"testing"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditAccount(t *testing.T) {
	t.Run("new account is empty and unpersisted", func(t *testing.T) {
		a, err := NewCreditAccount(uuid.New())
		require.NoError(t, err)
		assert.True(t, a.IsNew())
		assert.True(t, a.CreditBalance.IsZero())

		a.MarkPersisted()
		assert.False(t, a.IsNew())
	})

	t.Run("nil customer rejected", func(t *testing.T) {
		_, err := NewCreditAccount(uuid.Nil)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("credit then debit records entries", func(t *testing.T) {
		a, err := NewCreditAccount(uuid.New())
		require.NoError(t, err)
		txID := uuid.New()

		require.NoError(t, a.Credit(dec("50"), &txID, nil, "overpayment"))
		require.NoError(t, a.Debit(dec("20"), &txID, "applied"))
		assert.True(t, a.CreditBalance.Equal(dec("30")))

		entries := a.PendingEntries()
		require.Len(t, entries, 2)
		assert.Equal(t, CreditEntryTypeCredit, entries[0].EntryType)
		assert.True(t, entries[0].BalanceBefore.IsZero())
		assert.True(t, entries[0].BalanceAfter.Equal(dec("50")))
		assert.Equal(t, CreditEntryTypeDebit, entries[1].EntryType)
		assert.True(t, entries[1].BalanceBefore.Equal(dec("50")))
		assert.True(t, entries[1].BalanceAfter.Equal(dec("30")))
		assert.Equal(t, &txID, entries[1].SettlementTransactionID)

		events := a.GetDomainEvents()
		require.Len(t, events, 2)
		assert.Equal(t, "CreditAdded", events[0].EventType())
		assert.Equal(t, "CreditConsumed", events[1].EventType())

		a.ClearPendingEntries()
		assert.Empty(t, a.PendingEntries())
	})

	t.Run("debit beyond balance rejected", func(t *testing.T) {
		a, err := NewCreditAccount(uuid.New())
		require.NoError(t, err)
		require.NoError(t, a.Credit(dec("10"), nil, nil, ""))
		err = a.Debit(dec("10.01"), nil, "")
		assert.Equal(t, shared.ErrInsufficientBalance.Code, shared.CodeOf(err))
		assert.True(t, a.CreditBalance.Equal(dec("10")))
	})

	t.Run("non positive amounts rejected", func(t *testing.T) {
		a, err := NewCreditAccount(uuid.New())
		require.NoError(t, err)
		assert.True(t, shared.IsValidation(a.Credit(dec("0"), nil, nil, "")))
		assert.True(t, shared.IsValidation(a.Debit(dec("-1"), nil, "")))
	})
}
