package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceApplicationModel is the slice of a customer's service application the
// settlement core reads and advances. The rest of its lifecycle is owned elsewhere.
type ServiceApplicationModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	Status     string    `gorm:"type:varchar(50);not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ServiceApplicationModel) TableName() string {
	return "service_applications"
}
