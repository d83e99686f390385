package telemetry

import (
	"context"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/erp/settlement"

// SettlementMetrics records document number issuance and settlement outcomes.
// It satisfies the Metrics interfaces of the numbering and settlement services.
type SettlementMetrics struct {
	numbersIssued    metric.Int64Counter
	seriesNearLimit  metric.Int64Counter
	settlements      metric.Int64Counter
	rejected         metric.Int64Counter
	settlementAmount metric.Float64Histogram
}

func NewSettlementMetrics(mp metric.MeterProvider) (*SettlementMetrics, error) {
	in := NewInstruments(mp.Meter(meterName))
	m := &SettlementMetrics{
		numbersIssued:    in.Counter("numbering.numbers_issued", "Document numbers issued", "{number}"),
		seriesNearLimit:  in.Counter("numbering.series_near_limit", "Issuances that crossed the near-limit threshold", "{event}"),
		settlements:      in.Counter("settlement.transactions", "Settlements completed", "{transaction}"),
		rejected:         in.Counter("settlement.rejected", "Settlements rejected", "{request}"),
		settlementAmount: in.Histogram("settlement.amount", "Total tendered per settlement", "{currency}", AmountBuckets),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SettlementMetrics) RecordNumberIssued(ctx context.Context, seriesID uuid.UUID, nearLimit bool) {
	attrs := metric.WithAttributes(AttrSeriesID.String(seriesID.String()))
	m.numbersIssued.Add(ctx, 1, attrs)
	if nearLimit {
		m.seriesNearLimit.Add(ctx, 1, attrs)
	}
}

// RecordSettlement counts a settlement. Replays are counted but their amount
// is not recorded again.
func (m *SettlementMetrics) RecordSettlement(ctx context.Context, mode settlement.PaymentMode, total decimal.Decimal, replayed bool) {
	m.settlements.Add(ctx, 1, metric.WithAttributes(AttrPaymentMode.String(string(mode)), AttrReplayed.Bool(replayed)))
	if !replayed {
		m.settlementAmount.Record(ctx, total.InexactFloat64(), metric.WithAttributes(AttrPaymentMode.String(string(mode))))
	}
}

func (m *SettlementMetrics) RecordSettlementRejected(ctx context.Context, code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(AttrErrorCode.String(code)))
}
