package settlement

import (
	"context"
	"testing"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceivableService(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := newMemStore()
		svc := NewReceivableService(store.ReceivableRepo(), store, nil)

		created, err := svc.CreateReceivable(ctx, CreateReceivableCommand{
			CustomerID: uuid.New(), Description: "Meter deposit", TotalAmountDue: dec("1500.00"),
		})
		require.NoError(t, err)
		assert.Equal(t, settlement.ReceivableStatusUnpaid, created.Status)
		assert.True(t, created.Balance.Equal(dec("1500")))

		got, err := svc.GetReceivable(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("create rejects sub-cent amounts", func(t *testing.T) {
		store := newMemStore()
		svc := NewReceivableService(store.ReceivableRepo(), store, nil)

		_, err := svc.CreateReceivable(ctx, CreateReceivableCommand{
			CustomerID: uuid.New(), Description: "Fee", TotalAmountDue: dec("10.005"),
		})
		assert.True(t, shared.IsValidation(err))
		assert.Empty(t, store.receivables)
	})

	t.Run("cancel unpaid", func(t *testing.T) {
		f := newFixture(t)
		r := f.receivable(t, "100.00", 0)
		svc := NewReceivableService(f.store.ReceivableRepo(), f.store, nil)

		resp, err := svc.CancelReceivable(ctx, r.ID, "Duplicate billing")
		require.NoError(t, err)
		assert.Equal(t, settlement.ReceivableStatusCancelled, resp.Status)

		// cancelled receivables are no longer collectable
		f.ready(false)
		_, err = f.svc.Settle(ctx, f.command(cash("100")))
		assert.ErrorIs(t, err, settlement.ErrNoReceivablesSelected)
	})

	t.Run("cancel with payments is refused", func(t *testing.T) {
		f := newFixture(t)
		f.ready(false)
		r := f.receivable(t, "100.00", 0)
		_, err := f.svc.Settle(ctx, f.command(cash("30")))
		require.NoError(t, err)

		svc := NewReceivableService(f.store.ReceivableRepo(), f.store, nil)
		_, err = svc.CancelReceivable(ctx, r.ID, "Changed mind")
		assert.Equal(t, "HAS_PAYMENTS", shared.CodeOf(err))
		assert.Equal(t, settlement.ReceivableStatusPartiallyPaid, f.store.receivable(r.ID).Status)
	})

	t.Run("refund routes the paid amount to credit", func(t *testing.T) {
		f := newFixture(t)
		f.ready(false)
		r := f.receivable(t, "100.00", 0)
		_, err := f.svc.Settle(ctx, f.command(cash("30")))
		require.NoError(t, err)

		svc := NewReceivableService(f.store.ReceivableRepo(), f.store, nil)
		res, err := svc.RefundReceivable(ctx, r.ID, "Service not rendered")
		require.NoError(t, err)
		assert.Equal(t, settlement.ReceivableStatusRefunded, res.Receivable.Status)
		assert.True(t, res.Refunded.Equal(dec("30")))
		assert.True(t, res.CreditBalance.Equal(dec("30")))
		assert.Equal(t, "30.00", f.store.creditBalance(f.customerID))

		entries, _, err := f.svc.ListCreditEntries(ctx, f.customerID, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.NotNil(t, entries[0].ReceivableID)
		assert.Equal(t, r.ID, *entries[0].ReceivableID)
	})

	t.Run("refund of unpaid receivable is refused", func(t *testing.T) {
		f := newFixture(t)
		r := f.receivable(t, "100.00", 0)
		svc := NewReceivableService(f.store.ReceivableRepo(), f.store, nil)

		_, err := svc.RefundReceivable(ctx, r.ID, "No reason")
		assert.Equal(t, "INVALID_STATE", shared.CodeOf(err))
		assert.Equal(t, "none", f.store.creditBalance(f.customerID))
	})
}
