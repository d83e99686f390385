package models

import (
	"time"

	"github.com/erp/settlement/internal/domain/numbering"
)

// NumberingSeriesModel is the persistence model for the Series aggregate root.
// At most one row has is_active set; a partial unique index enforces it.
type NumberingSeriesModel struct {
	AggregateModel
	Name           string `gorm:"type:varchar(100);not null"`
	FormatTemplate string `gorm:"type:varchar(100);not null"`
	StartNumber    int64  `gorm:"not null"`
	EndNumber      *int64
	CurrentNumber  int64     `gorm:"not null;default:0"`
	IsActive       bool      `gorm:"not null;default:false;index"`
	EffectiveFrom  time.Time `gorm:"not null"`
	EffectiveTo    *time.Time
}

// TableName returns the table name for GORM
func (NumberingSeriesModel) TableName() string {
	return "numbering_series"
}

// ToDomain converts the persistence model to a domain Series
func (m *NumberingSeriesModel) ToDomain() *numbering.Series {
	return &numbering.Series{
		BaseAggregateRoot: m.root(),
		Name:              m.Name,
		FormatTemplate:    m.FormatTemplate,
		StartNumber:       m.StartNumber,
		EndNumber:         m.EndNumber,
		CurrentNumber:     m.CurrentNumber,
		IsActive:          m.IsActive,
		EffectiveFrom:     m.EffectiveFrom,
		EffectiveTo:       m.EffectiveTo,
	}
}

// FromDomain populates the persistence model from a domain Series
func (m *NumberingSeriesModel) FromDomain(s *numbering.Series) {
	m.setRoot(s.BaseAggregateRoot)
	m.Name = s.Name
	m.FormatTemplate = s.FormatTemplate
	m.StartNumber = s.StartNumber
	m.EndNumber = s.EndNumber
	m.CurrentNumber = s.CurrentNumber
	m.IsActive = s.IsActive
	m.EffectiveFrom = s.EffectiveFrom
	m.EffectiveTo = s.EffectiveTo
}

// NumberingSeriesModelFromDomain creates a new persistence model from a domain Series
func NumberingSeriesModelFromDomain(s *numbering.Series) *NumberingSeriesModel {
	m := &NumberingSeriesModel{}
	m.FromDomain(s)
	return m
}
