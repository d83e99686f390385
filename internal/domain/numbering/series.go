package numbering

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Defaults for rendering and near-limit reporting
const (
	DefaultUnboundedWidth   = 6
	DefaultNearLimitPercent = 90
)

// Numbering errors
var (
	ErrNoActiveSeries     = shared.NewDomainError("NO_ACTIVE_SERIES", "No active numbering series covers the requested date")
	ErrSeriesLimitReached = shared.NewDomainError("SERIES_LIMIT_REACHED", "Numbering series has reached its end number")
	ErrSeriesNotFound     = &shared.DomainError{Kind: shared.KindNotFound, Code: "SERIES_NOT_FOUND", Message: "Numbering series not found"}
)

// Series is a configured range of document numbers rendered through a format template.
// CurrentNumber is zero until the first number is issued.
type Series struct {
	shared.BaseAggregateRoot
	Name           string     `json:"name"`
	FormatTemplate string     `json:"format_template"`
	StartNumber    int64      `json:"start_number"`
	EndNumber      *int64     `json:"end_number"`
	CurrentNumber  int64      `json:"current_number"`
	IsActive       bool       `json:"is_active"`
	EffectiveFrom  time.Time  `json:"effective_from"`
	EffectiveTo    *time.Time `json:"effective_to"`
}

// NewSeries creates a new inactive series
func NewSeries(name, formatTemplate string, start int64, end *int64, effectiveFrom time.Time, effectiveTo *time.Time) (*Series, error) {
	s := &Series{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
	}
	if err := s.apply(name, formatTemplate, start, end, effectiveFrom, effectiveTo); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Series) apply(name, formatTemplate string, start int64, end *int64, from time.Time, to *time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("INVALID_SERIES_NAME", "Series name cannot be empty")
	}
	if len(name) > 100 {
		return shared.NewValidationError("INVALID_SERIES_NAME", "Series name cannot exceed 100 characters")
	}
	if _, err := ParseTemplate(formatTemplate); err != nil {
		return err
	}
	if start < 1 {
		return shared.NewValidationError("INVALID_SERIES_RANGE", "Start number must be at least 1")
	}
	if end != nil && start > *end {
		return shared.NewValidationError("INVALID_SERIES_RANGE",
			fmt.Sprintf("Start number %d is greater than end number %d", start, *end))
	}
	if from.IsZero() {
		return shared.NewValidationError("INVALID_EFFECTIVE_WINDOW", "Effective from date is required")
	}
	if to != nil && to.Before(from) {
		return shared.NewValidationError("INVALID_EFFECTIVE_WINDOW", "Effective to date cannot be before effective from date")
	}
	if s.HasStarted() {
		if start != s.StartNumber {
			return shared.NewDomainError("SERIES_ALREADY_STARTED", "Start number cannot change once numbers have been issued")
		}
		if end != nil && *end < s.CurrentNumber {
			return shared.NewValidationError("INVALID_SERIES_RANGE",
				fmt.Sprintf("End number %d is below the last issued number %d", *end, s.CurrentNumber))
		}
	}

	s.Name = name
	s.FormatTemplate = formatTemplate
	s.StartNumber = start
	s.EndNumber = end
	s.EffectiveFrom = from
	s.EffectiveTo = to
	return nil
}

// Update changes the series configuration. The start number is frozen once issuing has begun.
func (s *Series) Update(name, formatTemplate string, start int64, end *int64, effectiveFrom time.Time, effectiveTo *time.Time) error {
	if err := s.apply(name, formatTemplate, start, end, effectiveFrom, effectiveTo); err != nil {
		return err
	}
	s.Touch()
	return nil
}

// Activate marks the series active. Deactivating the others is the registry's job.
func (s *Series) Activate() {
	if s.IsActive {
		return
	}
	s.IsActive = true
	s.Touch()
	s.AddDomainEvent(NewSeriesActivatedEvent(s))
}

// Deactivate marks the series inactive
func (s *Series) Deactivate() {
	if !s.IsActive {
		return
	}
	s.IsActive = false
	s.Touch()
}

// HasStarted reports whether at least one number has been issued
func (s *Series) HasStarted() bool {
	return s.CurrentNumber > 0
}

// IsEffectiveAt reports whether at falls inside the effective window (both ends inclusive)
func (s *Series) IsEffectiveAt(at time.Time) bool {
	if at.Before(s.EffectiveFrom) {
		return false
	}
	return s.EffectiveTo == nil || !at.After(*s.EffectiveTo)
}

// IsExhausted reports whether the end number has been issued
func (s *Series) IsExhausted() bool {
	return s.EndNumber != nil && s.HasStarted() && s.CurrentNumber >= *s.EndNumber
}

// NextValue returns the value the next issuance would use without reserving it
func (s *Series) NextValue() int64 {
	if !s.HasStarted() {
		return s.StartNumber
	}
	return s.CurrentNumber + 1
}

// NumberWidth is the zero-pad width used by a bare {NUMBER}
func (s *Series) NumberWidth(unboundedWidth int) int {
	if s.EndNumber != nil {
		return DigitCount(*s.EndNumber)
	}
	if unboundedWidth < 1 {
		return DefaultUnboundedWidth
	}
	return unboundedWidth
}

// Issue reserves the next number and renders it. The caller must hold the series
// row lock and persist the series before releasing it.
func (s *Series) Issue(at time.Time, unboundedWidth, nearLimitPercent int) (IssuedNumber, Statistics, error) {
	if !s.IsActive || !s.IsEffectiveAt(at) {
		return IssuedNumber{}, Statistics{}, ErrNoActiveSeries
	}
	if s.IsExhausted() {
		return IssuedNumber{}, Statistics{}, ErrSeriesLimitReached
	}
	tpl, err := ParseTemplate(s.FormatTemplate)
	if err != nil {
		return IssuedNumber{}, Statistics{}, err
	}

	value := s.NextValue()
	wasNear := s.Statistics(nearLimitPercent).NearLimit

	s.CurrentNumber = value
	s.Touch()

	issued := IssuedNumber{
		NumericValue: value,
		Formatted:    tpl.Render(value, at, s.NumberWidth(unboundedWidth)),
		SeriesID:     s.ID,
		IssuedAt:     at,
	}
	stats := s.Statistics(nearLimitPercent)

	s.AddDomainEvent(NewNumberIssuedEvent(s, issued))
	if stats.NearLimit && !wasNear {
		s.AddDomainEvent(NewSeriesNearLimitEvent(s, stats))
	}
	return issued, stats, nil
}

// Statistics computes usage figures. It never mutates the series.
func (s *Series) Statistics(nearLimitPercent int) Statistics {
	if nearLimitPercent <= 0 {
		nearLimitPercent = DefaultNearLimitPercent
	}
	stats := Statistics{
		SeriesID:      s.ID,
		StartNumber:   s.StartNumber,
		EndNumber:     s.EndNumber,
		CurrentNumber: s.CurrentNumber,
		UsagePercent:  decimal.Zero,
	}
	if s.HasStarted() {
		stats.Used = s.CurrentNumber - s.StartNumber + 1
	}
	if s.EndNumber == nil {
		return stats
	}

	capacity := *s.EndNumber - s.StartNumber + 1
	remaining := capacity - stats.Used
	stats.Capacity = &capacity
	stats.Remaining = &remaining
	stats.UsagePercent = decimal.NewFromInt(stats.Used).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(capacity)).
		Round(2)
	stats.NearLimit = stats.UsagePercent.GreaterThanOrEqual(decimal.NewFromInt(int64(nearLimitPercent)))
	return stats
}

// Statistics describes how much of a series has been consumed.
// Capacity and Remaining are nil for unbounded series.
type Statistics struct {
	SeriesID      uuid.UUID       `json:"series_id"`
	StartNumber   int64           `json:"start_number"`
	EndNumber     *int64          `json:"end_number"`
	CurrentNumber int64           `json:"current_number"`
	Used          int64           `json:"used"`
	Capacity      *int64          `json:"capacity"`
	Remaining     *int64          `json:"remaining"`
	UsagePercent  decimal.Decimal `json:"usage_percent"`
	NearLimit     bool            `json:"near_limit"`
}

// IssuedNumber is a single never-reused value drawn from a series
type IssuedNumber struct {
	NumericValue int64     `json:"numeric_value"`
	Formatted    string    `json:"formatted"`
	SeriesID     uuid.UUID `json:"series_id"`
	IssuedAt     time.Time `json:"issued_at"`
}
