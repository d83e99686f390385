package persistence

import (
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// listOrder whitelists the columns a listing may be sorted by. Anything
// else, including an empty OrderBy, falls back to fallback.
type listOrder struct {
	fallback string
	columns  []string
}

func orderBy(fallback string, columns ...string) listOrder {
	return listOrder{fallback: fallback, columns: append([]string{"id", "created_at"}, columns...)}
}

var (
	seriesOrder      = orderBy("effective_from", "updated_at", "name", "is_active", "current_number")
	receivableOrder  = orderBy("created_at", "updated_at", "total_amount_due", "amount_paid", "balance", "status", "paid_at")
	transactionOrder = orderBy("settled_at", "updated_at", "document_number", "total_amount", "payment_mode")
	creditEntryOrder = orderBy("created_at", "entry_type", "amount")
)

func (o listOrder) column(requested string) string {
	requested = strings.TrimSpace(requested)
	if lo.Contains(o.columns, requested) {
		return requested
	}
	return o.fallback
}

func direction(requested string) string {
	if strings.EqualFold(strings.TrimSpace(requested), "asc") {
		return "ASC"
	}
	return "DESC"
}

// page returns a scope ordering by the filter's column with id as the
// tiebreaker, limited to the filter's page.
func (o listOrder) page(filter shared.Filter) func(*gorm.DB) *gorm.DB {
	col := o.column(filter.OrderBy)
	return func(db *gorm.DB) *gorm.DB {
		db = db.Order(col + " " + direction(filter.OrderDir))
		if col != "id" {
			db = db.Order("id")
		}
		if limit := filter.Limit(); limit > 0 {
			db = db.Offset(filter.Offset()).Limit(limit)
		}
		return db
	}
}
