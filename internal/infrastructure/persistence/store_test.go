package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/numbering"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/migration"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	testFrom = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	testNow  = time.Date(2025, time.October, 15, 10, 0, 0, 0, time.UTC)
)

// newSQLiteDB opens a private in-memory SQLite database with the schema applied
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDatabase(sqliteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migration.AutoMigrate(db.DB))
	return db.DB
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(v int64) *int64 {
	return &v
}

// seedSeries stores a series, active when requested
func seedSeries(t *testing.T, db *gorm.DB, template string, start int64, end *int64, active bool) *numbering.Series {
	t.Helper()
	series, err := numbering.NewSeries("OR "+uuid.NewString()[:8], template, start, end, testFrom, nil)
	require.NoError(t, err)
	if active {
		series.Activate()
	}
	series.ClearDomainEvents()
	require.NoError(t, NewGormSeriesRepository(db).Create(context.Background(), series))
	return series
}

// seedApplication stores a service application in the given status
func seedApplication(t *testing.T, db *gorm.DB, customerID uuid.UUID, status string) uuid.UUID {
	t.Helper()
	app := models.ServiceApplicationModel{ID: uuid.New(), CustomerID: customerID, Status: status, UpdatedAt: testNow}
	require.NoError(t, db.Create(&app).Error)
	return app.ID
}

// seedReceivable stores an unpaid receivable
func seedReceivable(t *testing.T, db *gorm.DB, customerID, applicationID uuid.UUID, amount string) *settlement.Receivable {
	t.Helper()
	r, err := settlement.NewReceivable(customerID, applicationID, "Charge "+amount, dec(amount))
	require.NoError(t, err)
	require.NoError(t, NewGormReceivableRepository(db).Create(context.Background(), r))
	return r
}

func applicationStatus(t *testing.T, db *gorm.DB, id uuid.UUID) string {
	t.Helper()
	var app models.ServiceApplicationModel
	require.NoError(t, db.First(&app, "id = ?", id).Error)
	return app.Status
}
