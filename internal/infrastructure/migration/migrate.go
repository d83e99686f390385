// Package migration applies the database schema.
//
// PostgreSQL uses the versioned SQL migrations embedded in the migrations
// package. SQLite, used for local runs and tests, is built from the gorm models
// plus the indexes AutoMigrate cannot express.
package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/erp/settlement/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrator applies the embedded migrations to PostgreSQL
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New opens the embedded source against db. Closing the Migrator closes db.
func New(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return &Migrator{migrate: m, logger: logger}, nil
}

// apply runs one schema change and logs where it left the schema. Having
// nothing to do is not an error.
func (m *Migrator) apply(action string, fn func() error) error {
	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("Schema already current", zap.String("action", action))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Schema migrated",
		zap.String("action", action),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.apply("up", m.migrate.Up)
}

// Down rolls every migration back
func (m *Migrator) Down() error {
	return m.apply("down", m.migrate.Down)
}

// Steps moves n migrations forward, or back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("step %d", n), func() error { return m.migrate.Steps(n) })
}

// Force records version as applied without running anything. It is the way
// out of a dirty state left by a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	return m.apply(fmt.Sprintf("force %d", version), func() error { return m.migrate.Force(version) })
}

// Version reports the applied version, 0 before the first migration
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

// Models lists every table the settlement core owns, in dependency order
func Models() []any {
	return []any{
		&models.NumberingSeriesModel{},
		&models.ServiceApplicationModel{},
		&models.ReceivableModel{},
		&models.CreditAccountModel{},
		&models.SettlementTransactionModel{},
		&models.SettlementAllocationModel{},
		&models.PaymentMethodModel{},
		&models.CreditEntryModel{},
	}
}

// sqliteIndexes are the constraints the gorm tags cannot declare
var sqliteIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_numbering_series_active ON numbering_series (is_active) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_settlement_transactions_series_value ON settlement_transactions (series_id, numeric_value) WHERE series_id IS NOT NULL`,
}

// AutoMigrate builds the schema from the gorm models. It is meant for SQLite.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range sqliteIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
