package persistence

import (
	"errors"
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes that a retry of the whole unit of work can resolve
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// ErrVersionConflict is returned when an optimistic version check fails
var ErrVersionConflict = shared.NewConcurrencyError("OPTIMISTIC_LOCK_ERROR",
	"The record has been modified by another transaction", nil)

// classifyError maps driver errors onto domain error kinds. Domain errors pass
// through unchanged.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			return shared.NewConcurrencyError("LOCK_NOT_AVAILABLE", "Row lock could not be acquired", err)
		case pgSerializationFailure:
			return shared.NewConcurrencyError("SERIALIZATION_FAILURE", "Concurrent update detected", err)
		case pgDeadlockDetected:
			return shared.NewConcurrencyError("DEADLOCK_DETECTED", "Deadlock detected", err)
		case pgUniqueViolation:
			return shared.NewConcurrencyError("UNIQUE_VIOLATION", "A concurrent write claimed the same key", err)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewConcurrencyError("UNIQUE_VIOLATION", "A concurrent write claimed the same key", err)
	}

	// SQLite reports contention and constraint failures only through the message
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database table is locked"):
		return shared.NewConcurrencyError("LOCK_NOT_AVAILABLE", "Row lock could not be acquired", err)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return shared.NewConcurrencyError("UNIQUE_VIOLATION", "A concurrent write claimed the same key", err)
	}

	return shared.NewStorageError(op, err)
}
