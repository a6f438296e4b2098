package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements the audit Storage interface using SQLite.
// Intended for self-hosted deployments without DynamoDB access.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite storage backend, initializing
// the schema and enabling WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, audit.NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "audit.storage.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and pragmas.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion,
	); err != nil {
		return audit.NewStorageError("sqlite", "set_schema_version", err)
	}

	return nil
}

// Write inserts one audit record.
func (s *SQLiteStorage) Write(ctx context.Context, record *audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			request_id, timestamp, model_id, profile_arn,
			transport_method, reason, latency_ms, success,
			status_code, request_bytes, response_bytes, attempts,
			error_kind
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RequestID,
		record.Timestamp,
		record.ModelID,
		nullable(record.ProfileARN),
		record.TransportMethod,
		nullable(record.Reason),
		record.LatencyMs,
		record.Success,
		record.StatusCode,
		record.RequestBytes,
		record.ResponseBytes,
		record.Attempts,
		nullable(record.ErrorKind),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "write", err)
	}
	return nil
}

// DeleteOlderThan removes records older than the cutoff.
func (s *SQLiteStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_records WHERE timestamp < ?", cutoff,
	)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "prune", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "prune_count", err)
	}
	return deleted, nil
}

// Count returns the number of stored records.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&count)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Get returns a stored record by request ID.
func (s *SQLiteStorage) Get(ctx context.Context, requestID string) (*audit.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, timestamp, model_id,
			COALESCE(profile_arn, ''), transport_method, COALESCE(reason, ''),
			latency_ms, success, status_code, request_bytes, response_bytes,
			attempts, COALESCE(error_kind, '')
		FROM audit_records WHERE request_id = ?`, requestID)

	var record audit.Record
	err := row.Scan(
		&record.RequestID,
		&record.Timestamp,
		&record.ModelID,
		&record.ProfileARN,
		&record.TransportMethod,
		&record.Reason,
		&record.LatencyMs,
		&record.Success,
		&record.StatusCode,
		&record.RequestBytes,
		&record.ResponseBytes,
		&record.Attempts,
		&record.ErrorKind,
	)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "get", err)
	}
	return &record, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
