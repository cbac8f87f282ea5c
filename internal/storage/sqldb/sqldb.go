// internal/storage/sqldb/sqldb.go
// Package sqldb implements storage.Store on gorm, with postgres for
// deployments and sqlite for development and tests.
package sqldb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/nft-amm/internal/index"
	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/storage"
	"github.com/rovshanmuradov/nft-amm/internal/storage/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects and tunes the database.
type Config struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
	// SlowThreshold defaults to DefaultSlowThreshold.
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

func gormLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info", "debug":
		return logger.Info
	default:
		return logger.Warn
	}
}

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store.
type Store struct {
	db      *gorm.DB
	driver  string
	logger  *zap.Logger
	queries *queryLogger
}

// SlowQueries reports how many statements exceeded the slow threshold.
func (s *Store) SlowQueries() uint64 {
	return s.queries.SlowQueries()
}

// Open connects and migrates the schema.
func Open(ctx context.Context, cfg Config, zapLogger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	queries := newQueryLogger(zapLogger.Named("gorm"), gormLevel(cfg.LogLevel), cfg.SlowThreshold)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: queries,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// one writer; also keeps a shared in-memory database alive
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	s := &Store{db: db, driver: cfg.Driver, logger: zapLogger.Named("sqldb"), queries: queries}
	if err := s.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if s.driver == DriverPostgres {
		var lockObtained bool
		if err := db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer db.Exec("SELECT pg_advisory_unlock(101)")
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.logger.Debug("Schema migrated", zap.String("driver", s.driver))
	return nil
}

func (s *Store) View(ctx context.Context, fn func(storage.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&tx{db: db})
	})
}

func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&tx{db: db})
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type tx struct {
	db *gorm.DB
}

func (t *tx) Pairs() storage.PairRepository { return &pairRepo{db: t.db} }
func (t *tx) Index() index.Index             { return &quoteIndex{db: t.db} }
func (t *tx) Ledger() settlement.Ledger      { return &ledger{db: t.db} }

// Savepoint nests a gorm transaction, which gorm runs as a SAVEPOINT.
func (t *tx) Savepoint(ctx context.Context, fn func(storage.Tx) error) error {
	return t.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&tx{db: db})
	})
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
