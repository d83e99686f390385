package numbering

import (
	"time"

	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// CreateSeriesCommand carries the configuration of a new series
type CreateSeriesCommand struct {
	Name           string
	FormatTemplate string
	StartNumber    int64
	EndNumber      *int64
	EffectiveFrom  time.Time
	EffectiveTo    *time.Time
	IsActive       bool
}

// UpdateSeriesCommand replaces the configuration of a series
type UpdateSeriesCommand struct {
	Name           string
	FormatTemplate string
	StartNumber    int64
	EndNumber      *int64
	EffectiveFrom  time.Time
	EffectiveTo    *time.Time
}

// SeriesResponse represents a series in API responses
type SeriesResponse struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	FormatTemplate string     `json:"format_template"`
	StartNumber    int64      `json:"start_number"`
	EndNumber      *int64     `json:"end_number,omitempty"`
	CurrentNumber  int64      `json:"current_number"`
	IsActive       bool       `json:"is_active"`
	EffectiveFrom  time.Time  `json:"effective_from"`
	EffectiveTo    *time.Time `json:"effective_to,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Version        int        `json:"version"`
}

// IssueResult is a freshly issued number with the series usage after issuance.
// NearLimit in Statistics is informational only.
type IssueResult struct {
	Issued     numbering.IssuedNumber `json:"issued"`
	Statistics numbering.Statistics   `json:"statistics"`

	// Events raised by the issuance, to be reported once the transaction commits
	Events []shared.DomainEvent `json:"-"`
}

// ManualNumberResult reports whether a manually entered number is free
type ManualNumberResult struct {
	Number    string `json:"number"`
	Available bool   `json:"available"`
}

func toSeriesResponse(s *numbering.Series) *SeriesResponse {
	return &SeriesResponse{
		ID:             s.ID,
		Name:           s.Name,
		FormatTemplate: s.FormatTemplate,
		StartNumber:    s.StartNumber,
		EndNumber:      s.EndNumber,
		CurrentNumber:  s.CurrentNumber,
		IsActive:       s.IsActive,
		EffectiveFrom:  s.EffectiveFrom,
		EffectiveTo:    s.EffectiveTo,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Version:        s.Version,
	}
}
