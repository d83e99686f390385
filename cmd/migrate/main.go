package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/migration"
	"github.com/erp/settlement/internal/infrastructure/persistence"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.Database.Driver == config.DriverSQLite {
		if command != "up" {
			log.Fatal("SQLite only supports the up command", zap.String("command", command))
		}
		db, err := persistence.NewDatabase(&cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := migration.AutoMigrate(db.DB); err != nil {
			log.Fatal("SQLite schema migration failed", zap.Error(err))
		}
		log.Info("SQLite schema up to date", zap.String("path", cfg.Database.SQLitePath))
		return
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(sqlDB, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	log.Info("Migration CLI started", zap.String("command", command))
	if err := run(m, command, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
			os.Exit(2)
		}
		log.Fatal("Migration failed", zap.String("command", command), zap.Error(err))
	}
}

var errUsage = errors.New("usage")

// run dispatches one CLI command to the migrator
func run(m *migration.Migrator, command string, args []string) error {
	intArg := func() (int, error) {
		if len(args) < 1 {
			return 0, fmt.Errorf("%s needs an integer argument: %w", command, errUsage)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not an integer: %w", command, args[0], errUsage)
		}
		return n, nil
	}

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg()
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "force":
		v, err := intArg()
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return nil
	}
	return errUsage
}

func printUsage() {
	fmt.Println(`Database Migration CLI

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                  Apply all pending migrations
  down                Roll back all migrations
  step <n>            Apply n migrations (negative rolls back)
  version             Show the current migration version
  force <version>     Set the version without running migrations (fixes a dirty state)

Flags:
  -log-level string   Log level (debug, info, warn, error) (default "info")

The database is taken from config.toml and SETTLEMENT_DATABASE_* environment
variables. With the sqlite driver only "up" is available and builds the schema
from the gorm models.`)
}
