// Package websocket is a storage backend that talks to a remote vttd hub.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
	"github.com/tablekeep/vtt/pkg/streaming"
)

var errClosed = storage.ErrClosed

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend forwards loads and saves to the hub and relays its change pushes
// to local subscribers.
type Backend struct {
	conn   *connection
	cfg    Config
	broker *storage.Broker
	logger *slog.Logger

	mu   sync.Mutex
	refs map[string]int // local subscribers per campaign
}

// New creates a new WebSocket storage backend. A nil logger uses
// slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{
		cfg:    cfg,
		broker: storage.NewBroker(),
		logger: logger,
		refs:   make(map[string]int),
	}
	b.conn = newConnection(logger, b.push)
	return b
}

// Init connects to the hub.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the hub and ends all subscriptions.
func (b *Backend) Close() error {
	err := b.conn.close()
	b.broker.Close()
	return err
}

// request sends a payload and turns an ack error into a Go error.
func (b *Backend) request(ctx context.Context, msgType, requestID string, payload any) (streaming.AckMessage, error) {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return streaming.AckMessage{}, fmt.Errorf("marshal %s: %w", msgType, err)
	}
	ack, err := b.conn.sendAndWait(ctx, data, requestID)
	if err != nil {
		return ack, err
	}
	if ack.Error != "" {
		return ack, fmt.Errorf("hub rejected %s: %s", msgType, ack.Error)
	}
	return ack, nil
}

// Load fetches one record from the hub.
func (b *Backend) Load(ctx context.Context, campaignID, toolKey string) (*core.Record, error) {
	id := uuid.NewString()
	ack, err := b.request(ctx, streaming.TypeLoadState, id, streaming.LoadStatePayload{
		RequestID:  id,
		CampaignID: campaignID,
		ToolKey:    toolKey,
	})
	if err != nil {
		return nil, err
	}
	if ack.Record == nil {
		return nil, nil
	}
	return ack.Record.Record(), nil
}

// Save overwrites the record on the hub. The hub pushes the change to every
// subscriber, this process included.
func (b *Backend) Save(ctx context.Context, rec *core.Record) error {
	if rec == nil {
		return errors.New("nil record")
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}
	id := uuid.NewString()
	_, err := b.request(ctx, streaming.TypeSaveState, id, streaming.SaveStatePayload{
		RequestID: id,
		Record:    streaming.FromRecord(rec),
	})
	return err
}

// Subscribe joins the campaign's feed on the hub. The subscription is
// replayed after a reconnect and dropped when the last local subscriber
// leaves.
func (b *Backend) Subscribe(ctx context.Context, campaignID string) (<-chan core.Notification, error) {
	msg, err := streaming.Marshal(streaming.TypeSubscribe, streaming.SubscribePayload{CampaignID: campaignID})
	if err != nil {
		return nil, err
	}
	ch, err := b.broker.Subscribe(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.refs[campaignID]++
	first := b.refs[campaignID] == 1
	b.mu.Unlock()
	if first {
		b.conn.remember(campaignID, msg)
		if err := b.conn.send(msg); err != nil {
			b.mu.Lock()
			delete(b.refs, campaignID)
			b.mu.Unlock()
			b.conn.remember(campaignID, nil)
			return nil, err
		}
	}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.refs[campaignID]--
		last := b.refs[campaignID] <= 0
		if last {
			delete(b.refs, campaignID)
		}
		b.mu.Unlock()
		if !last {
			return
		}
		b.conn.remember(campaignID, nil)
		if leave, err := streaming.Marshal(streaming.TypeUnsubscribe, streaming.SubscribePayload{CampaignID: campaignID}); err == nil {
			_ = b.conn.send(leave)
		}
	}()
	return ch, nil
}

// push handles unsolicited hub messages.
func (b *Backend) push(env streaming.Envelope) {
	if env.Type != streaming.TypeStateChanged {
		b.logger.Debug("Ignoring hub message", "type", env.Type)
		return
	}
	var p streaming.StateChangedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		b.logger.Warn("Malformed state_changed payload", "error", err)
		return
	}
	b.broker.Publish(p.Notification)
}
