// Package gormstorage implements storage.Backend over any gorm dialect. The
// sqlite and postgres backends wrap it.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tablekeep/vtt/internal/model"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
	// Notify is called after each committed save. Nil publishes to the
	// in-process broker.
	Notify func(ctx context.Context, rec *core.Record) error
	// Audit appends a save_events row per save.
	Audit bool
}

// Backend stores tool_states rows through gorm.
type Backend struct {
	deps   Dependencies
	broker *storage.Broker
	closed atomic.Bool
	saves  atomic.Uint64
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{deps: deps, broker: storage.NewBroker()}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close stops accepting work and drops subscribers. The connection is owned
// by the caller.
func (b *Backend) Close() error {
	b.closed.Store(true)
	b.broker.Close()
	return nil
}

// DB exposes the connection for wrapping backends.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// Broker exposes the subscriber fan-out for wrapping backends.
func (b *Backend) Broker() *storage.Broker { return b.broker }

// Saves counts committed saves.
func (b *Backend) Saves() uint64 { return b.saves.Load() }

// Load reads one record; a missing row is nil, nil.
func (b *Backend) Load(ctx context.Context, campaignID, toolKey string) (*core.Record, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	var row model.ToolState
	err := b.deps.DB.WithContext(ctx).
		Where("campaign_id = ? AND tool_key = ?", campaignID, toolKey).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", campaignID, toolKey, err)
	}
	return row.Record(), nil
}

// Save upserts the record on (campaign_id, tool_key).
func (b *Backend) Save(ctx context.Context, rec *core.Record) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	row := model.FromRecord(rec)

	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "tool_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "updated_by", "saved_at", "updated_at"}),
		}).Create(row).Error
		if err != nil {
			return err
		}
		if !b.deps.Audit {
			return nil
		}
		return tx.Create(&model.SaveEvent{
			Time:       rec.SavedAt,
			CampaignID: rec.CampaignID,
			ToolKey:    rec.ToolKey,
			UpdatedBy:  rec.UpdatedBy,
			Bytes:      len(rec.State),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", rec.CampaignID, rec.ToolKey, err)
	}
	b.saves.Add(1)

	if b.deps.Notify != nil {
		if err := b.deps.Notify(ctx, rec); err != nil {
			b.deps.Logger.Warn("change notification failed", "campaign", rec.CampaignID, "error", err)
		}
		return nil
	}
	b.broker.Publish(storage.NotificationFor(rec))
	return nil
}

// Subscribe streams notifications for one campaign.
func (b *Backend) Subscribe(ctx context.Context, campaignID string) (<-chan core.Notification, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	return b.broker.Subscribe(ctx, campaignID)
}

// List returns every stored record.
func (b *Backend) List(ctx context.Context) ([]core.Record, error) {
	var rows []model.ToolState
	if err := b.deps.DB.WithContext(ctx).Order("campaign_id, tool_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tool states: %w", err)
	}
	out := make([]core.Record, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].Record())
	}
	return out, nil
}

// SaveEvents returns the audit trail for a campaign, newest first.
func (b *Backend) SaveEvents(ctx context.Context, campaignID string, limit int) ([]model.SaveEvent, error) {
	var events []model.SaveEvent
	q := b.deps.DB.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list save events: %w", err)
	}
	return events, nil
}
