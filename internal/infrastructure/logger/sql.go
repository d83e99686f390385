package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLogger routes gorm's statement log to zap. Lock waits and serialization
// failures are logged as warnings because the settlement retry loop absorbs
// them; record-not-found is never logged.
type SQLLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

// NewSQLLogger maps the application log level onto gorm's: debug and info
// trace every statement, warn reports slow ones, error reports failures.
// slow <= 0 turns slow-statement reporting off.
func NewSQLLogger(log *zap.Logger, level string, slow time.Duration) *SQLLogger {
	return &SQLLogger{log: log.Named("sql"), level: gormLevel(level), slow: slow}
}

func gormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "info":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	}
	return gormlogger.Warn
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *SQLLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, args...)
	}
}

func (l *SQLLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, args...)
	}
}

func (l *SQLLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, args...)
	}
}

// Trace logs one executed statement
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent || errors.Is(err, gormlogger.ErrRecordNotFound) {
		return
	}
	elapsed := time.Since(begin)
	slow := l.slow > 0 && elapsed >= l.slow

	var write func(string, ...zap.Field)
	var msg string
	switch {
	case err != nil && isLockConflict(err):
		write, msg = l.log.Warn, "Statement conflicted"
	case err != nil:
		write, msg = l.log.Error, "Statement failed"
	case slow && l.level >= gormlogger.Warn:
		write, msg = l.log.Warn, "Slow statement"
	case l.level >= gormlogger.Info:
		write, msg = l.log.Debug, "Statement"
	default:
		return
	}

	stmt, rows := fc()
	fields := append(traceFields(ctx),
		zap.String("sql", stmt),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if slow {
		fields = append(fields, zap.Duration("slow_threshold", l.slow))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	write(msg, fields...)
}

// isLockConflict matches PostgreSQL lock_timeout, serialization and deadlock
// failures and SQLite busy errors.
func isLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "55P03" || pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
