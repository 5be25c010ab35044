// Package sqlitestorage stores tool states in sqlite. With no file path it
// runs an in-memory database and periodically dumps it with VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"github.com/tablekeep/vtt/internal/database"
	gormstorage "github.com/tablekeep/vtt/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	// Path is the database file. Empty means in-memory.
	Path string
	// DumpPath receives periodic dumps of an in-memory database.
	DumpPath     string
	DumpInterval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *database.Manager
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// New opens the sqlite database.
func New(cfg Config, log *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	m := database.NewManager(dbLog)
	if err := m.OpenSQLite(cfg.Path); err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: m.DB, Logger: log, Audit: true}),
		db:      m,
		cfg:     cfg,
		log:     log,
	}, nil
}

func (b *Backend) dumping() bool {
	return b.cfg.Path == "" && b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0
}

// Init migrates and starts the dump loop for in-memory databases.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.dumping() {
		b.stopChan = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump loop, writes a final dump and closes the database.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
		if err := b.db.DumpToDisk(b.cfg.DumpPath); err != nil {
			b.log.Error("final sqlite dump failed", "error", err)
		}
	}
	_ = b.Backend.Close()
	return b.db.Close()
}

func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := b.db.DumpToDisk(b.cfg.DumpPath); err != nil {
				b.log.Error("sqlite dump failed", "error", err)
			}
		case <-b.stopChan:
			return
		}
	}
}
