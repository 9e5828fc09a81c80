// Package storage persists transactions, documents, and attachments in
// SQLite through GORM. Repositories translate driver errors into the
// service error taxonomy so callers never see gorm errors directly.
package storage

import (
	"context"
	"fmt"
	"time"

	"taxfiler-matching-service/pkg/errors"
	"taxfiler-matching-service/pkg/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config holds database connection settings.
type Config struct {
	// Path is the SQLite database file. The special value ":memory:"
	// opens an in-process database that vanishes on close.
	Path string

	// BusyTimeout bounds how long a write waits on a locked database.
	BusyTimeout time.Duration

	// LogQueries enables GORM statement logging at info level.
	LogQueries bool
}

// DefaultConfig returns settings suitable for a local database file.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:        path,
		BusyTimeout: 5 * time.Second,
	}
}

// Database wraps the GORM connection and owns schema migration.
type Database struct {
	db     *gorm.DB
	logger logger.Logger
}

// Open connects to the SQLite database at cfg.Path and migrates the
// schema. The returned Database is safe for concurrent use.
func Open(cfg *Config) (*Database, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"storage.path",
			[]string{"database path must not be empty"},
		)
	}

	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)
	if cfg.LogQueries {
		gormLog = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "open database", err).
			WithContext("path", cfg.Path)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, "access connection pool", err)
	}
	// SQLite serializes writers; one open connection avoids lock churn.
	sqlDB.SetMaxOpenConns(1)

	if cfg.BusyTimeout > 0 {
		timeoutMs := int(cfg.BusyTimeout / time.Millisecond)
		if err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", timeoutMs)).Error; err != nil {
			return nil, errors.StorageError(errors.CodeStorageUnavailable, "set busy timeout", err)
		}
	}

	d := &Database{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("storage"),
	}

	if err := d.migrate(); err != nil {
		return nil, err
	}

	d.logger.WithField("path", cfg.Path).Debug("Database opened")
	return d, nil
}

func (d *Database) migrate() error {
	err := d.db.AutoMigrate(
		&transactionRecord{},
		&documentRecord{},
		&attachmentRecord{},
	)
	if err != nil {
		return errors.StorageError(errors.CodeStorageUnavailable, "migrate schema", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return errors.StorageError(errors.CodeStorageUnavailable, "access connection pool", err)
	}
	return sqlDB.Close()
}

// Ping verifies the connection is usable.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return errors.StorageError(errors.CodeStorageUnavailable, "access connection pool", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.StorageError(errors.CodeStorageUnavailable, "ping database", err)
	}
	return nil
}

// Transactions returns the transaction repository backed by this database.
func (d *Database) Transactions() *TransactionRepository {
	return &TransactionRepository{db: d.db}
}

// Documents returns the document repository backed by this database.
func (d *Database) Documents() *DocumentRepository {
	return &DocumentRepository{db: d.db}
}

// Attachments returns the attachment repository backed by this database.
func (d *Database) Attachments() *AttachmentRepository {
	return &AttachmentRepository{db: d.db}
}
