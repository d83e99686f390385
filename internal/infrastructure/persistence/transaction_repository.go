package persistence

import (
	"context"
	"errors"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransactionRepository implements settlement.TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Create inserts the transaction together with its allocations and payment methods
func (r *GormTransactionRepository) Create(ctx context.Context, txn *settlement.Transaction) error {
	model := models.SettlementTransactionModelFromDomain(txn)
	return classifyError("create settlement transaction", r.db.WithContext(ctx).Create(model).Error)
}

// FindByID loads a transaction with its lines
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*settlement.Transaction, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByIdempotencyKey loads the transaction recorded under key
func (r *GormTransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*settlement.Transaction, error) {
	return r.findOne(ctx, "idempotency_key = ?", key)
}

func (r *GormTransactionRepository) findOne(ctx context.Context, cond string, arg interface{}) (*settlement.Transaction, error) {
	var model models.SettlementTransactionModel
	err := r.db.WithContext(ctx).
		Preload("Allocations").
		Preload("PaymentMethods").
		First(&model, cond, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, classifyError("find settlement transaction", err)
	}
	return model.ToDomain(), nil
}

// FindByCustomer lists a customer's transactions with their lines
func (r *GormTransactionRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]settlement.Transaction, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.SettlementTransactionModel{}).
		Where("customer_id = ?", customerID).
		Count(&total).Error
	if err != nil {
		return nil, 0, classifyError("count settlement transactions", err)
	}

	var txnModels []models.SettlementTransactionModel
	query := r.db.WithContext(ctx).
		Preload("Allocations").
		Preload("PaymentMethods").
		Where("customer_id = ?", customerID)
	if err := query.Scopes(transactionOrder.page(filter)).Find(&txnModels).Error; err != nil {
		return nil, 0, classifyError("list settlement transactions", err)
	}
	txns := make([]settlement.Transaction, len(txnModels))
	for i := range txnModels {
		txns[i] = *txnModels[i].ToDomain()
	}
	return txns, total, nil
}

// ExistsByDocumentNumber reports whether number is already used
func (r *GormTransactionRepository) ExistsByDocumentNumber(ctx context.Context, number string, excludeID *uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.SettlementTransactionModel{}).
		Where("document_number = ?", number)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, classifyError("check document number", err)
	}
	return count > 0, nil
}

var _ settlement.TransactionRepository = (*GormTransactionRepository)(nil)
