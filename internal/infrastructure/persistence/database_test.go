package persistence

import (
	"context"
	"database/sql"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked PostgreSQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB, Driver: config.DriverPostgres}, mock, mockDB
}

func sqliteConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		SQLitePath:  ":memory:",
		LockTimeout: 2 * time.Second,
	}
}

type recordingPlugin struct {
	initialized bool
}

func (p *recordingPlugin) Name() string { return "recording" }

func (p *recordingPlugin) Initialize(*gorm.DB) error {
	p.initialized = true
	return nil
}

func TestNewDatabase_SQLite(t *testing.T) {
	plugin := &recordingPlugin{}
	db, err := NewDatabase(sqliteConfig(), WithPlugins(plugin))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, config.DriverSQLite, db.Driver)
	assert.True(t, plugin.initialized)
	require.NoError(t, db.Ping(context.Background()))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)

	var fk int
	require.NoError(t, db.DB.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported database driver "mysql"`)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver: config.DriverPostgres, Host: "db.local", Port: 5432,
		User: "billing", Password: "secret", DBName: "settlement", SSLMode: "disable",
	}

	t.Run("no lock timeout", func(t *testing.T) {
		dsn, err := postgresDSN(cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg.DSN(), dsn)
	})

	t.Run("lock timeout becomes a runtime parameter", func(t *testing.T) {
		withTimeout := *cfg
		withTimeout.LockTimeout = 1500 * time.Millisecond

		dsn, err := postgresDSN(&withTimeout)
		require.NoError(t, err)
		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Equal(t, "1500", u.Query().Get("lock_timeout"))
		assert.Equal(t, "disable", u.Query().Get("sslmode"))
	})
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{"file with timeout", config.DatabaseConfig{SQLitePath: "data/settlement.db", LockTimeout: 3 * time.Second}, "file:data/settlement.db?_foreign_keys=on&_busy_timeout=3000"},
		{"memory default timeout", config.DatabaseConfig{}, "file::memory:?_foreign_keys=on&_busy_timeout=5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(&tt.cfg))
		})
	}
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}
