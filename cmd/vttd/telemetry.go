package main

import (
	"context"
	"time"

	"github.com/tablekeep/vtt/internal/persist"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
)

// recordingBackend reports every save the hub performs to the telemetry
// sink before returning its result.
type recordingBackend struct {
	storage.Backend
	telemetry persist.Telemetry
}

func (b *recordingBackend) Save(ctx context.Context, rec *core.Record) error {
	start := time.Now()
	err := b.Backend.Save(ctx, rec)
	if b.telemetry != nil {
		b.telemetry.RecordSave(ctx, rec.CampaignID, rec.ToolKey, len(rec.State), time.Since(start), err)
	}
	return err
}
