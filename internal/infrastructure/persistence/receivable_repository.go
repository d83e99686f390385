package persistence

import (
	"context"
	"errors"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// payableStatuses are the statuses a settlement may allocate to
var payableStatuses = []settlement.ReceivableStatus{
	settlement.ReceivableStatusUnpaid,
	settlement.ReceivableStatusPartiallyPaid,
}

// GormReceivableRepository implements settlement.ReceivableRepository using GORM
type GormReceivableRepository struct {
	db *gorm.DB
}

// NewGormReceivableRepository creates a new GormReceivableRepository
func NewGormReceivableRepository(db *gorm.DB) *GormReceivableRepository {
	return &GormReceivableRepository{db: db}
}

// FindByID finds a receivable by its ID
func (r *GormReceivableRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Receivable, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a receivable and locks its row
func (r *GormReceivableRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*settlement.Receivable, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormReceivableRepository) findOne(query *gorm.DB, id uuid.UUID) (*settlement.Receivable, error) {
	var model models.ReceivableModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, settlement.ErrReceivableNotFound
		}
		return nil, classifyError("find receivable", err)
	}
	return model.ToDomain(), nil
}

// FindByCustomer lists a customer's receivables, optionally narrowed by status
func (r *GormReceivableRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter settlement.ReceivableFilter) ([]settlement.Receivable, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("customer_id = ?", customerID)
		if filter.Status != nil {
			db = db.Where("status = ?", *filter.Status)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ReceivableModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, classifyError("count receivables", err)
	}

	var receivableModels []models.ReceivableModel
	query := r.db.WithContext(ctx).Scopes(scope, receivableOrder.page(filter.Filter))
	if err := query.Find(&receivableModels).Error; err != nil {
		return nil, 0, classifyError("list receivables", err)
	}
	receivables := make([]settlement.Receivable, len(receivableModels))
	for i, model := range receivableModels {
		receivables[i] = *model.ToDomain()
	}
	return receivables, total, nil
}

// FindByIDsForUpdate locks the listed receivables of a customer in ascending ID order
func (r *GormReceivableRepository) FindByIDsForUpdate(ctx context.Context, customerID uuid.UUID, ids []uuid.UUID) ([]*settlement.Receivable, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).Where("customer_id = ? AND id IN ?", customerID, ids)
	return r.lockAll(query, "lock receivables")
}

// FindPayableByCustomerForUpdate locks every UNPAID or PARTIALLY_PAID receivable of a customer
func (r *GormReceivableRepository) FindPayableByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) ([]*settlement.Receivable, error) {
	query := r.db.WithContext(ctx).Where("customer_id = ? AND status IN ?", customerID, payableStatuses)
	return r.lockAll(query, "lock payable receivables")
}

// lockAll always orders by id so that concurrent settlements acquire row locks
// in the same sequence.
func (r *GormReceivableRepository) lockAll(query *gorm.DB, op string) ([]*settlement.Receivable, error) {
	var receivableModels []models.ReceivableModel
	err := query.Clauses(clause.Locking{Strength: "UPDATE"}).Order("id").Find(&receivableModels).Error
	if err != nil {
		return nil, classifyError(op, err)
	}
	receivables := make([]*settlement.Receivable, len(receivableModels))
	for i := range receivableModels {
		receivables[i] = receivableModels[i].ToDomain()
	}
	return receivables, nil
}

// CountUnpaidByCustomer counts UNPAID and PARTIALLY_PAID receivables
func (r *GormReceivableRepository) CountUnpaidByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReceivableModel{}).
		Where("customer_id = ? AND status IN ?", customerID, payableStatuses).
		Count(&count).Error
	if err != nil {
		return 0, classifyError("count unpaid receivables", err)
	}
	return count, nil
}

// Create inserts a new receivable
func (r *GormReceivableRepository) Create(ctx context.Context, receivable *settlement.Receivable) error {
	model := models.ReceivableModelFromDomain(receivable)
	return classifyError("create receivable", r.db.WithContext(ctx).Create(model).Error)
}

// SaveWithLock updates the receivable if its stored version still matches
func (r *GormReceivableRepository) SaveWithLock(ctx context.Context, receivable *settlement.Receivable) error {
	model := models.ReceivableModelFromDomain(receivable)
	model.Version = receivable.Version + 1
	result := r.db.WithContext(ctx).
		Model(&models.ReceivableModel{}).
		Where("id = ? AND version = ?", receivable.ID, receivable.Version).
		Select("*").Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return classifyError("save receivable", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	receivable.IncrementVersion()
	return nil
}

var _ settlement.ReceivableRepository = (*GormReceivableRepository)(nil)
