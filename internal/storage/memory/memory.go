// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
)

type key struct {
	campaign string
	tool     string
}

// Backend keeps records in process memory. It is the default for a single
// hub process and for tests.
type Backend struct {
	mu      sync.RWMutex
	records map[key]core.Record
	broker  *storage.Broker
	closed  bool
}

// New creates a new memory backend.
func New() *Backend {
	return &Backend{
		records: make(map[key]core.Record),
		broker:  storage.NewBroker(),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close drops subscribers. Records are kept so a closed backend can still be
// inspected in tests.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.broker.Close()
	return nil
}

// Load returns a copy of the stored record.
func (b *Backend) Load(_ context.Context, campaignID, toolKey string) (*core.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrClosed
	}
	rec, ok := b.records[key{campaignID, toolKey}]
	if !ok {
		return nil, nil
	}
	out := rec
	out.State = append([]byte(nil), rec.State...)
	return &out, nil
}

// Save overwrites the record and publishes it.
func (b *Backend) Save(_ context.Context, rec *core.Record) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return storage.ErrClosed
	}
	stored := *rec
	stored.State = append([]byte(nil), rec.State...)
	b.records[key{rec.CampaignID, rec.ToolKey}] = stored
	b.mu.Unlock()

	b.broker.Publish(storage.NotificationFor(&stored))
	return nil
}

// Subscribe streams notifications for one campaign.
func (b *Backend) Subscribe(ctx context.Context, campaignID string) (<-chan core.Notification, error) {
	return b.broker.Subscribe(ctx, campaignID)
}

// List returns every stored record ordered by campaign and tool key.
func (b *Backend) List(_ context.Context) ([]core.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.Record, 0, len(b.records))
	for _, rec := range b.records {
		rec.State = append([]byte(nil), rec.State...)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CampaignID != out[j].CampaignID {
			return out[i].CampaignID < out[j].CampaignID
		}
		return out[i].ToolKey < out[j].ToolKey
	})
	return out, nil
}
