package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCreditAccountRepository implements settlement.CreditAccountRepository using GORM
type GormCreditAccountRepository struct {
	db *gorm.DB
}

// NewGormCreditAccountRepository creates a new GormCreditAccountRepository
func NewGormCreditAccountRepository(db *gorm.DB) *GormCreditAccountRepository {
	return &GormCreditAccountRepository{db: db}
}

// FindByCustomer returns the customer's account or shared.ErrNotFound
func (r *GormCreditAccountRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*settlement.CreditAccount, error) {
	return r.findOne(r.db.WithContext(ctx), customerID)
}

// FindByCustomerForUpdate returns the customer's account and locks its row
func (r *GormCreditAccountRepository) FindByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (*settlement.CreditAccount, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), customerID)
}

func (r *GormCreditAccountRepository) findOne(query *gorm.DB, customerID uuid.UUID) (*settlement.CreditAccount, error) {
	var model models.CreditAccountModel
	if err := query.First(&model, "customer_id = ?", customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, classifyError("find credit account", err)
	}
	return model.ToDomain(), nil
}

// Save inserts a new account or version-checks an existing one, then appends
// the ledger entries recorded since the account was loaded.
func (r *GormCreditAccountRepository) Save(ctx context.Context, account *settlement.CreditAccount) error {
	db := r.db.WithContext(ctx)

	if account.IsNew() {
		if err := db.Create(models.CreditAccountModelFromDomain(account)).Error; err != nil {
			return classifyError("create credit account", err)
		}
		account.MarkPersisted()
	} else {
		result := db.Model(&models.CreditAccountModel{}).
			Where("id = ? AND version = ?", account.ID, account.Version).
			Updates(map[string]interface{}{
				"credit_balance": account.CreditBalance,
				"updated_at":     time.Now(),
				"version":        account.Version + 1,
			})
		if result.Error != nil {
			return classifyError("save credit account", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}
		account.IncrementVersion()
	}

	entries := account.PendingEntries()
	if len(entries) == 0 {
		return nil
	}
	entryModels := make([]*models.CreditEntryModel, len(entries))
	for i, entry := range entries {
		entryModels[i] = models.CreditEntryModelFromDomain(entry)
	}
	if err := db.Create(entryModels).Error; err != nil {
		return classifyError("append credit entries", err)
	}
	account.ClearPendingEntries()
	return nil
}

// FindEntries returns a page of the customer's credit ledger
func (r *GormCreditAccountRepository) FindEntries(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]settlement.CreditEntry, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.CreditEntryModel{}).
		Where("customer_id = ?", customerID).
		Count(&total).Error
	if err != nil {
		return nil, 0, classifyError("count credit entries", err)
	}

	var entryModels []models.CreditEntryModel
	query := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Scopes(creditEntryOrder.page(filter))
	if err := query.Find(&entryModels).Error; err != nil {
		return nil, 0, classifyError("list credit entries", err)
	}
	entries := make([]settlement.CreditEntry, len(entryModels))
	for i := range entryModels {
		entries[i] = entryModels[i].ToDomain()
	}
	return entries, total, nil
}

var _ settlement.CreditAccountRepository = (*GormCreditAccountRepository)(nil)
