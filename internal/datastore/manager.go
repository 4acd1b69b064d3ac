// Package datastore opens the configured database and migrates the schema.
package datastore

import (
	"context"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/ledgerline/propops/internal/conf"
	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/logger"
)

const slowQueryThreshold = 500 * time.Millisecond

// Manager owns the gorm connection.
type Manager struct {
	db     *gorm.DB
	driver string
	log    logger.Logger
}

// Open connects to the database described by cfg.
func Open(cfg conf.DatabaseConfig, log logger.Logger) (*Manager, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	level := gorm_logger.Warn
	if cfg.Debug {
		level = gorm_logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gorm_logger.New(gormWriter{log: log}, gorm_logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	log.Info("database opened", logger.String("driver", cfg.Driver))
	return &Manager{db: db, driver: cfg.Driver, log: log}, nil
}

// NewManager wraps an existing connection, used by tests.
func NewManager(db *gorm.DB, driver string, log logger.Logger) *Manager {
	return &Manager{db: db, driver: driver, log: log}
}

func dialectorFor(cfg conf.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.Path
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=ON&_busy_timeout=5000&_journal_mode=WAL"
		}
		return sqlite.Open(dsn), nil
	case "mysql":
		parsed, err := mysqldriver.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		// Scanning DATETIME columns into time.Time needs parseTime. Updates
		// report matched rather than changed rows so a no-op save is not
		// mistaken for a missing row.
		parsed.ParseTime = true
		parsed.ClientFoundRows = true
		return mysql.Open(parsed.FormatDSN()), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// DB returns the gorm handle.
func (m *Manager) DB() *gorm.DB { return m.db }

// Driver returns the configured dialect name.
func (m *Manager) Driver() string { return m.driver }

// Migrate creates or updates every table.
func (m *Manager) Migrate(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(entities.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.log.Info("schema migrated", logger.Int("tables", len(entities.All())))
	return nil
}

// Ping checks connectivity, used by the health endpoint.
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter routes gorm's log lines into the application logger.
type gormWriter struct {
	log logger.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.String("component", "gorm"))
}
