package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSeriesRepository implements numbering.SeriesRepository using GORM
type GormSeriesRepository struct {
	db *gorm.DB
}

// NewGormSeriesRepository creates a new GormSeriesRepository
func NewGormSeriesRepository(db *gorm.DB) *GormSeriesRepository {
	return &GormSeriesRepository{db: db}
}

// FindByID finds a series by its ID
func (r *GormSeriesRepository) FindByID(ctx context.Context, id uuid.UUID) (*numbering.Series, error) {
	return r.findByID(ctx, r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a series and locks its row until the transaction ends
func (r *GormSeriesRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*numbering.Series, error) {
	return r.findByID(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormSeriesRepository) findByID(_ context.Context, query *gorm.DB, id uuid.UUID) (*numbering.Series, error) {
	var model models.NumberingSeriesModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, numbering.ErrSeriesNotFound
		}
		return nil, classifyError("find series", err)
	}
	return model.ToDomain(), nil
}

// FindAll returns a page of series and the total count
func (r *GormSeriesRepository) FindAll(ctx context.Context, filter shared.Filter) ([]numbering.Series, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.NumberingSeriesModel{}).Count(&total).Error; err != nil {
		return nil, 0, classifyError("count series", err)
	}

	var seriesModels []models.NumberingSeriesModel
	query := r.db.WithContext(ctx).Scopes(seriesOrder.page(filter))
	if err := query.Find(&seriesModels).Error; err != nil {
		return nil, 0, classifyError("list series", err)
	}
	series := make([]numbering.Series, len(seriesModels))
	for i, model := range seriesModels {
		series[i] = *model.ToDomain()
	}
	return series, total, nil
}

// FindActiveForUpdate locks the active series. It returns numbering.ErrNoActiveSeries
// when no series is active or the active one is not effective at asOf.
func (r *GormSeriesRepository) FindActiveForUpdate(ctx context.Context, asOf time.Time) (*numbering.Series, error) {
	var model models.NumberingSeriesModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("is_active = ?", true).
		Order("id").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, numbering.ErrNoActiveSeries
		}
		return nil, classifyError("find active series", err)
	}
	series := model.ToDomain()
	if !series.IsEffectiveAt(asOf) {
		return nil, numbering.ErrNoActiveSeries
	}
	return series, nil
}

// Create inserts a new series
func (r *GormSeriesRepository) Create(ctx context.Context, series *numbering.Series) error {
	model := models.NumberingSeriesModelFromDomain(series)
	return classifyError("create series", r.db.WithContext(ctx).Create(model).Error)
}

// SaveWithLock updates the series if its stored version still matches, then bumps the version
func (r *GormSeriesRepository) SaveWithLock(ctx context.Context, series *numbering.Series) error {
	model := models.NumberingSeriesModelFromDomain(series)
	model.Version = series.Version + 1
	result := r.db.WithContext(ctx).
		Model(&models.NumberingSeriesModel{}).
		Where("id = ? AND version = ?", series.ID, series.Version).
		Select("*").Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return classifyError("save series", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	series.IncrementVersion()
	return nil
}

// DeactivateAllExcept clears the active flag on every other series
func (r *GormSeriesRepository) DeactivateAllExcept(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.NumberingSeriesModel{}).
		Where("is_active = ? AND id <> ?", true, id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		}).Error
	return classifyError("deactivate series", err)
}

var _ numbering.SeriesRepository = (*GormSeriesRepository)(nil)
