// Package database opens and migrates the gorm connection behind the
// durable backends.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tablekeep/vtt/internal/config"
	"github.com/tablekeep/vtt/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Manager handles database connections and schema.
type Manager struct {
	DB      *gorm.DB
	SqlDB   *sql.DB
	Dialect string
	Logger  zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect opens postgres, falling back to sqlite at fallbackPath when the
// server is unreachable.
func (m *Manager) Connect(cfg config.DBConfig, fallbackPath string) error {
	err := m.OpenPostgres(cfg)
	if err == nil {
		return nil
	}
	m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
	if err := m.OpenSQLite(fallbackPath); err != nil {
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	return nil
}

// OpenPostgres connects and pings the configured server.
func (m *Manager) OpenPostgres(cfg config.DBConfig) error {
	m.Logger.Debug().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connecting to Postgres DB")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}
	if err := m.attach(db); err != nil {
		return err
	}
	m.SqlDB.SetMaxOpenConns(10)
	m.Logger.Info().Msg("Connected to database")
	return nil
}

// OpenSQLite opens a sqlite file. An empty path gives a private in-memory
// database.
func (m *Manager) OpenSQLite(path string) error {
	dsn := path
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	for _, pragma := range sqlitePragmas(path == "") {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	if err := m.attach(db); err != nil {
		return err
	}
	// one writer keeps sqlite from returning SQLITE_BUSY
	m.SqlDB.SetMaxOpenConns(1)
	if path == "" {
		m.Logger.Info().Msg("Using in-memory SQLite DB")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	}
	return nil
}

func sqlitePragmas(memory bool) []string {
	p := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA foreign_keys = ON;",
	}
	if !memory {
		p = append(p, "PRAGMA journal_mode = WAL;", "PRAGMA synchronous = NORMAL;")
	}
	return p
}

func (m *Manager) attach(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	m.DB = db
	m.SqlDB = sqlDB
	m.Dialect = db.Dialector.Name()
	return nil
}

// Setup migrates the schema.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return fmt.Errorf("database not connected")
	}
	m.Logger.Info().Str("dialect", m.Dialect).Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpToDisk writes an in-memory sqlite database to path with VACUUM INTO,
// replacing any previous dump.
func (m *Manager) DumpToDisk(path string) error {
	if path == "" {
		return fmt.Errorf("sqlite dump path not set")
	}
	if m.DB == nil {
		return fmt.Errorf("database not connected")
	}
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	start := time.Now()
	if err := m.DB.Exec("VACUUM INTO '" + strings.ReplaceAll(tmp, "'", "''") + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error replacing DB dump: %w", err)
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Str("path", path).Msg("Dumped memory DB to disk")
	return nil
}

// IsPostgres reports whether the open connection is postgres.
func (m *Manager) IsPostgres() bool {
	return strings.EqualFold(m.Dialect, "postgres")
}

// Close closes the underlying pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	err := m.SqlDB.Close()
	m.SqlDB = nil
	m.DB = nil
	return err
}
