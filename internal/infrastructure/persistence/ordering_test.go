package persistence

import (
	"testing"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestListOrder_Column(t *testing.T) {
	tests := []struct {
		name      string
		order     listOrder
		requested string
		want      string
	}{
		{"empty falls back", seriesOrder, "", "effective_from"},
		{"whitelisted column", seriesOrder, "current_number", "current_number"},
		{"shared id column", creditEntryOrder, "id", "id"},
		{"surrounding spaces trimmed", receivableOrder, "  balance ", "balance"},
		{"unknown column falls back", receivableOrder, "customer_name", "created_at"},
		{"case sensitive", transactionOrder, "DOCUMENT_NUMBER", "settled_at"},
		{"injection falls back", transactionOrder, "id; DROP TABLE settlement_transactions;--", "settled_at"},
		{"column of another listing", creditEntryOrder, "balance", "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.order.column(tt.requested))
		})
	}
}

func TestDirection(t *testing.T) {
	for input, want := range map[string]string{
		"":          "DESC",
		"asc":       "ASC",
		" ASC ":     "ASC",
		"desc":      "DESC",
		"sideways":  "DESC",
		"asc; --":   "DESC",
		"ascending": "DESC",
	} {
		assert.Equal(t, want, direction(input), "input %q", input)
	}
}

func TestListOrder_Page(t *testing.T) {
	db := newSQLiteDB(t)

	render := func(scope func(*gorm.DB) *gorm.DB) string {
		return db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			var rows []models.ReceivableModel
			return tx.Scopes(scope).Find(&rows)
		})
	}

	t.Run("orders with id tiebreaker and pages", func(t *testing.T) {
		sql := render(receivableOrder.page(shared.Filter{Page: 3, PageSize: 10, OrderBy: "balance", OrderDir: "asc"}))
		assert.Contains(t, sql, "ORDER BY balance ASC,id")
		assert.Contains(t, sql, "LIMIT 10 OFFSET 20")
	})

	t.Run("ordering by id adds no tiebreaker", func(t *testing.T) {
		sql := render(receivableOrder.page(shared.Filter{OrderBy: "id"}))
		assert.Contains(t, sql, "ORDER BY id DESC")
		assert.NotContains(t, sql, "id DESC,id")
		assert.NotContains(t, sql, "LIMIT")
	})

	t.Run("oversized pages are clamped", func(t *testing.T) {
		sql := render(receivableOrder.page(shared.Filter{Page: 2, PageSize: 5000}))
		assert.Contains(t, sql, "LIMIT 100 OFFSET 100")
	})
}
