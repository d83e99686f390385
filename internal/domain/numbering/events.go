package numbering

import (
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeSeries is the aggregate type name for series events
const AggregateTypeSeries = "NumberingSeries"

// SeriesActivatedEvent is raised when a series becomes the active one
type SeriesActivatedEvent struct {
	shared.BaseDomainEvent
	SeriesID uuid.UUID `json:"series_id"`
	Name     string    `json:"name"`
}

// NewSeriesActivatedEvent creates a new SeriesActivatedEvent
func NewSeriesActivatedEvent(s *Series) *SeriesActivatedEvent {
	return &SeriesActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SeriesActivated", AggregateTypeSeries, s.ID),
		SeriesID:        s.ID,
		Name:            s.Name,
	}
}

// NumberIssuedEvent is raised for every issued document number
type NumberIssuedEvent struct {
	shared.BaseDomainEvent
	SeriesID     uuid.UUID `json:"series_id"`
	NumericValue int64     `json:"numeric_value"`
	Formatted    string    `json:"formatted"`
}

// NewNumberIssuedEvent creates a new NumberIssuedEvent
func NewNumberIssuedEvent(s *Series, issued IssuedNumber) *NumberIssuedEvent {
	return &NumberIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("NumberIssued", AggregateTypeSeries, s.ID),
		SeriesID:        s.ID,
		NumericValue:    issued.NumericValue,
		Formatted:       issued.Formatted,
	}
}

// SeriesNearLimitEvent is raised once, when usage first crosses the near-limit threshold
type SeriesNearLimitEvent struct {
	shared.BaseDomainEvent
	SeriesID     uuid.UUID       `json:"series_id"`
	UsagePercent decimal.Decimal `json:"usage_percent"`
	Remaining    int64           `json:"remaining"`
}

// NewSeriesNearLimitEvent creates a new SeriesNearLimitEvent
func NewSeriesNearLimitEvent(s *Series, stats Statistics) *SeriesNearLimitEvent {
	var remaining int64
	if stats.Remaining != nil {
		remaining = *stats.Remaining
	}
	return &SeriesNearLimitEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SeriesNearLimit", AggregateTypeSeries, s.ID),
		SeriesID:        s.ID,
		UsagePercent:    stats.UsagePercent,
		Remaining:       remaining,
	}
}
