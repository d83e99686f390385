// Package pgtest starts a throwaway PostgreSQL container with the settlement
// schema applied. Tests using it are skipped under -short or without Docker.
package pgtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	sharedOnce sync.Once
	sharedDSN  string
	sharedErr  error
)

// TestDB is a connection to the shared test container
type TestDB struct {
	DB  *gorm.DB
	DSN string
	t   *testing.T
}

// New returns a connection to the package's shared container with all
// settlement tables truncated. The container is started and migrated on first use.
func New(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	sharedOnce.Do(func() {
		sharedDSN, sharedErr = startContainer()
	})
	require.NoError(t, sharedErr, "Failed to start PostgreSQL container")

	db := connect(t, sharedDSN)
	tdb := &TestDB{DB: db, DSN: sharedDSN, t: t}
	tdb.CleanTables()

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return tdb
}

func startContainer() (string, error) {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("settlement_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", err
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", err
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return "", err
	}
	m, err := migration.New(sqlDB, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = m.Close() }()
	if err := m.Up(); err != nil {
		return "", err
	}
	return dsn, nil
}

// connect opens a small pool on dsn. Statements go to the test log when
// TEST_DB_DEBUG is set.
func connect(t *testing.T, dsn string) *gorm.DB {
	t.Helper()

	log := zap.NewNop()
	level := "error"
	if os.Getenv("TEST_DB_DEBUG") != "" {
		log, level = zaptest.NewLogger(t), "debug"
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.NewSQLLogger(log, level, time.Second),
	})
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	return db
}

// CleanTables empties every settlement table in one statement, leaving the
// migration bookkeeping alone.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	require.NoError(tdb.t, tdb.DB.
		Table("pg_tables").
		Where("schemaname = ? AND tablename <> ?", "public", "schema_migrations").
		Pluck("tablename", &tables).Error)
	if len(tables) == 0 {
		return
	}

	quoted := make([]string, len(tables))
	for i, table := range tables {
		quoted[i] = fmt.Sprintf("%q", table)
	}
	require.NoError(tdb.t, tdb.DB.Exec("TRUNCATE TABLE "+strings.Join(quoted, ", ")+" RESTART IDENTITY CASCADE").Error)
}
