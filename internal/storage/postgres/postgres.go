// Package postgres stores tool states in PostgreSQL through gorm and carries
// change notifications across processes with LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/tablekeep/vtt/internal/config"
	"github.com/tablekeep/vtt/internal/database"
	"github.com/tablekeep/vtt/internal/storage"
	gormstorage "github.com/tablekeep/vtt/internal/storage/gorm"
	"github.com/tablekeep/vtt/pkg/core"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// change is the NOTIFY payload. The state itself is reloaded by listeners,
// which keeps payloads under the 8000 byte NOTIFY limit.
type change struct {
	CampaignID string `json:"campaignId"`
	ToolKey    string `json:"toolKey"`
	UpdatedBy  string `json:"updatedBy,omitempty"`
}

func encodeChange(rec *core.Record) (string, error) {
	b, err := json.Marshal(change{CampaignID: rec.CampaignID, ToolKey: rec.ToolKey, UpdatedBy: rec.UpdatedBy})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeChange(payload string) (change, error) {
	var c change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return change{}, fmt.Errorf("decode notify payload: %w", err)
	}
	if c.CampaignID == "" || c.ToolKey == "" {
		return change{}, fmt.Errorf("decode notify payload: missing key")
	}
	return c, nil
}

func listenStatement(channel string) string {
	return "LISTEN " + pgx.Identifier{channel}.Sanitize()
}

// Backend is a gorm backend whose saves NOTIFY a channel that every process
// LISTENs on.
type Backend struct {
	*gormstorage.Backend
	cfg config.DBConfig
	db  *database.Manager
	log *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates the backend. Connections are opened by Init.
func New(cfg config.DBConfig, log *slog.Logger, dbLog zerolog.Logger) *Backend {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.NotifyChannel == "" {
		cfg.NotifyChannel = "vtt_state"
	}
	return &Backend{cfg: cfg, db: database.NewManager(dbLog), log: log}
}

// Init connects gorm, migrates, and starts the listener.
func (b *Backend) Init() error {
	if err := b.db.OpenPostgres(b.cfg); err != nil {
		return fmt.Errorf("failed to connect to Postgres DB: %w", err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:     b.db.DB,
		Logger: b.log,
		Notify: b.notify,
		Audit:  true,
	})
	if err := b.Backend.Init(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := b.connectListener(ctx)
	if err != nil {
		cancel()
		return err
	}
	b.mu.Lock()
	b.cancel = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()
	go b.listen(ctx, conn)
	return nil
}

// Close stops the listener and closes the pool.
func (b *Backend) Close() error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	if b.Backend != nil {
		_ = b.Backend.Close()
	}
	return b.db.Close()
}

func (b *Backend) notify(ctx context.Context, rec *core.Record) error {
	payload, err := encodeChange(rec)
	if err != nil {
		return err
	}
	return b.DB().WithContext(ctx).Exec("SELECT pg_notify(?, ?)", b.cfg.NotifyChannel, payload).Error
}

func (b *Backend) connectListener(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, b.cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}
	if _, err := conn.Exec(ctx, listenStatement(b.cfg.NotifyChannel)); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", b.cfg.NotifyChannel, err)
	}
	b.log.Info("listening for state changes", "channel", b.cfg.NotifyChannel)
	return conn, nil
}

// listen relays notifications until ctx ends, reconnecting with exponential
// backoff when the listener connection drops.
func (b *Backend) listen(ctx context.Context, conn *pgx.Conn) {
	defer close(b.done)
	backoff := initialBackoff
	for {
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			var err error
			conn, err = b.connectListener(ctx)
			if err != nil {
				b.log.Warn("listener reconnect failed", "error", err, "retry_in", backoff)
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			backoff = initialBackoff
		}

		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			conn.Close(context.Background())
			conn = nil
			if ctx.Err() != nil {
				return
			}
			b.log.Warn("listener dropped", "error", err)
			continue
		}
		b.relay(ctx, n.Payload)
	}
}

func (b *Backend) relay(ctx context.Context, payload string) {
	c, err := decodeChange(payload)
	if err != nil {
		b.log.Warn("ignoring notification", "error", err)
		return
	}
	if b.Broker().Subscribers(c.CampaignID) == 0 {
		return
	}
	rec, err := b.Load(ctx, c.CampaignID, c.ToolKey)
	if err != nil || rec == nil {
		b.log.Warn("reload after notification failed", "campaign", c.CampaignID, "error", err)
		return
	}
	b.Broker().Publish(storage.NotificationFor(rec))
}
