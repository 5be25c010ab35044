// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/tablekeep/vtt/pkg/core"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("storage: backend closed")

// Backend is the interface all storage implementations must satisfy. Records
// are read and written whole; there is no partial update.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Load returns nil, nil when no record exists for the key.
	Load(ctx context.Context, campaignID, toolKey string) (*core.Record, error)
	// Save overwrites the record and notifies subscribers of the campaign.
	Save(ctx context.Context, rec *core.Record) error
	// Subscribe streams change notifications for a campaign until ctx ends.
	Subscribe(ctx context.Context, campaignID string) (<-chan core.Notification, error)
}

// Lister is an optional interface for backends that can enumerate stored
// campaigns, used by export.
type Lister interface {
	List(ctx context.Context) ([]core.Record, error)
}

// NotificationFor builds the change notification announcing rec.
func NotificationFor(rec *core.Record) core.Notification {
	return core.Notification{
		CampaignID: rec.CampaignID,
		ToolKey:    rec.ToolKey,
		State:      append([]byte(nil), rec.State...),
		UpdatedBy:  rec.UpdatedBy,
	}
}
