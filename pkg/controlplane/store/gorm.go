package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

// slowQueryThreshold is the duration above which a query is logged.
const slowQueryThreshold = 500 * time.Millisecond

// GORMStore implements Store on SQLite or PostgreSQL. The node
// configuration lives in three tables (pools, replicas, nexuses) that are
// replaced as a whole on every export.
type GORMStore struct {
	db     *gorm.DB
	config *Config
}

var _ Store = (*GORMStore)(nil)

// New opens the database described by config, creating the schema on first
// use. A nil config opens the default SQLite file.
func New(config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dialector, err := openDialector(config)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", config.Type, err)
	}

	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate control plane schema: %w", err)
	}

	logger.Debug("Control plane store opened", "type", config.Type)
	return &GORMStore{db: db, config: config}, nil
}

func openDialector(config *Config) (gorm.Dialector, error) {
	switch config.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL lets the API read while an export writes; busy_timeout covers
		// the short window where two exports overlap.
		return sqlite.Open(config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"), nil
	case DatabaseTypePostgres:
		return postgres.Open(config.Postgres.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// DB returns the underlying connection.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// gormWriter sends GORM's warnings (slow queries, errors) to the node
// logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyComponent, "store")
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
