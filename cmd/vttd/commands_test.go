package main

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/internal/config"
	"github.com/tablekeep/vtt/internal/persist"
	"github.com/tablekeep/vtt/internal/storage/legacy"
	"github.com/tablekeep/vtt/internal/storage/memory"
	"github.com/tablekeep/vtt/pkg/core"
)

func TestMain(m *testing.M) {
	config.LoadDefaults()
	os.Exit(m.Run())
}

func sceneState(names ...string) core.State {
	st := core.State{}
	for i, n := range names {
		st.Scenes = append(st.Scenes, core.Scene{ID: string(rune('a' + i)), Name: n, Width: 5, Height: 5, GridSize: 50})
	}
	if len(st.Scenes) > 0 {
		id := st.Scenes[0].ID
		st.CurrentSceneID = &id
	}
	return st
}

func TestMigrateLegacy(t *testing.T) {
	ctx := context.Background()
	cache := legacy.New(t.TempDir())
	require.NoError(t, cache.Write("c1", sceneState("Crypt", "Road")))
	require.NoError(t, cache.Write("c2", sceneState("Tavern")))

	backend := memory.New()
	require.NoError(t, backend.Init())
	raw, err := persist.Encode(sceneState("Durable"))
	require.NoError(t, err)
	require.NoError(t, backend.Save(ctx, &core.Record{CampaignID: "c2", ToolKey: core.ToolKey, State: raw}))

	results, err := migrateLegacy(ctx, backend, cache, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]string{}
	for _, r := range results {
		byID[r.campaignID] = r.outcome
	}
	assert.Equal(t, "promoted (2 scenes)", byID["c1"])
	assert.Equal(t, "skipped, durable record exists", byID["c2"])

	rec, err := backend.Load(ctx, "c1", core.ToolKey)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, migrateUser, rec.UpdatedBy)

	// promoted caches are renamed and not listed again
	remaining, err := cache.Campaigns()
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, remaining)
}

func TestExportFormats(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	require.NoError(t, backend.Init())
	raw, err := persist.Encode(sceneState("Crypt"))
	require.NoError(t, err)
	require.NoError(t, backend.Save(ctx, &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: raw, UpdatedBy: "gm"}))
	require.NoError(t, backend.Save(ctx, &core.Record{CampaignID: "c1", ToolKey: "notes", State: []byte(`{}`)}))
	require.NoError(t, backend.Save(ctx, &core.Record{CampaignID: "bad", ToolKey: core.ToolKey, State: []byte(`{"scenes":3}`)}))

	docs, err := collectExports(ctx, backend, core.ToolKey, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c1", docs[0].CampaignID)
	assert.Equal(t, "Crypt", docs[0].State.Scenes[0].Name)

	var js bytes.Buffer
	require.NoError(t, writeExports(&js, "json", docs))
	assert.Contains(t, js.String(), `"currentSceneId": "a"`)

	var ym bytes.Buffer
	require.NoError(t, writeExports(&ym, "yaml", docs))
	assert.Contains(t, ym.String(), "campaignId: c1")
	assert.Contains(t, ym.String(), "name: Crypt")

	_, err = collectExports(ctx, backend, core.ToolKey, []string{"missing"})
	require.NoError(t, err)
}

type fakeTelemetry struct {
	campaign string
	size     int
	err      error
	calls    int
}

func (f *fakeTelemetry) RecordSave(_ context.Context, campaignID, _ string, size int, _ time.Duration, err error) {
	f.calls++
	f.campaign = campaignID
	f.size = size
	f.err = err
}

func TestRecordingBackend(t *testing.T) {
	inner := memory.New()
	require.NoError(t, inner.Init())
	sink := &fakeTelemetry{}
	b := &recordingBackend{Backend: inner, telemetry: sink}

	require.NoError(t, b.Save(context.Background(), &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: []byte(`{"scenes":[]}`)}))
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, "c1", sink.campaign)
	assert.Equal(t, len(`{"scenes":[]}`), sink.size)
	assert.NoError(t, sink.err)

	require.NoError(t, inner.Close())
	err := b.Save(context.Background(), &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: []byte(`{}`)})
	assert.Error(t, err)
	assert.Equal(t, 2, sink.calls)
	assert.Equal(t, err, sink.err)

	quiet := &recordingBackend{Backend: memory.New()}
	require.NoError(t, quiet.Save(context.Background(), &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: []byte(`{}`)}))
}
