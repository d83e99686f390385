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

// Default service application statuses
const (
	DefaultReadyStatus   = "FOR_PAYMENT"
	DefaultSettledStatus = "PAID"
)

// ErrApplicationNotFound is returned when the service application does not exist
var ErrApplicationNotFound = &shared.DomainError{Kind: shared.KindNotFound, Code: "APPLICATION_NOT_FOUND", Message: "Service application not found"}

// GormApplicationGateway implements settlement.ApplicationGateway against the
// service_applications table.
type GormApplicationGateway struct {
	db            *gorm.DB
	readyStatus   string
	settledStatus string
}

// NewGormApplicationGateway creates a gateway. Empty statuses fall back to the defaults.
func NewGormApplicationGateway(db *gorm.DB, readyStatus, settledStatus string) *GormApplicationGateway {
	if readyStatus == "" {
		readyStatus = DefaultReadyStatus
	}
	if settledStatus == "" {
		settledStatus = DefaultSettledStatus
	}
	return &GormApplicationGateway{db: db, readyStatus: readyStatus, settledStatus: settledStatus}
}

// IsReadyForCollection reports whether the customer's application is in the ready status
func (g *GormApplicationGateway) IsReadyForCollection(ctx context.Context, customerID, applicationID uuid.UUID) (bool, error) {
	var model models.ServiceApplicationModel
	err := g.db.WithContext(ctx).Select("id", "status").
		First(&model, "id = ? AND customer_id = ?", applicationID, customerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrApplicationNotFound
		}
		return false, classifyError("find service application", err)
	}
	return model.Status == g.readyStatus, nil
}

// AdvanceAfterSettlement moves a ready application to the settled status.
// An application already past the ready status is left alone.
func (g *GormApplicationGateway) AdvanceAfterSettlement(ctx context.Context, customerID, applicationID uuid.UUID) error {
	var model models.ServiceApplicationModel
	err := g.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ? AND customer_id = ?", applicationID, customerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrApplicationNotFound
		}
		return classifyError("lock service application", err)
	}
	if model.Status != g.readyStatus {
		return nil
	}
	err = g.db.WithContext(ctx).Model(&models.ServiceApplicationModel{}).
		Where("id = ?", applicationID).
		Updates(map[string]interface{}{"status": g.settledStatus, "updated_at": time.Now()}).Error
	return classifyError("advance service application", err)
}

var _ settlement.ApplicationGateway = (*GormApplicationGateway)(nil)
