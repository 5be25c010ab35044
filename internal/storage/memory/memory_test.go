// internal/storage/memory/memory_test.go
package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
)

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Lister  = (*Backend)(nil)
)

func TestLoad_Missing(t *testing.T) {
	b := New()
	require.NoError(t, b.Init())
	rec, err := b.Load(context.Background(), "c1", core.ToolKey)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSaveLoad(t *testing.T) {
	b := New()
	ctx := context.Background()
	in := &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: []byte(`{"scenes":[]}`), UpdatedBy: "gm"}
	require.NoError(t, b.Save(ctx, in))

	in.State[2] = 'X'
	got, err := b.Load(ctx, "c1", core.ToolKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"scenes":[]}`, string(got.State))
	assert.Equal(t, "gm", got.UpdatedBy)

	other, err := b.Load(ctx, "c1", "other_tool")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestSave_Notifies(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: []byte(`{}`), UpdatedBy: "gm"}))

	select {
	case n := <-ch:
		assert.Equal(t, core.ToolKey, n.ToolKey)
		assert.Equal(t, "gm", n.UpdatedBy)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}

func TestList(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.NoError(t, b.Save(ctx, &core.Record{CampaignID: "b", ToolKey: core.ToolKey}))
	require.NoError(t, b.Save(ctx, &core.Record{CampaignID: "a", ToolKey: core.ToolKey}))
	recs, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].CampaignID)
}

func TestClosed(t *testing.T) {
	b := New()
	require.NoError(t, b.Close())
	ctx := context.Background()
	assert.ErrorIs(t, b.Save(ctx, &core.Record{CampaignID: "c"}), storage.ErrClosed)
	_, err := b.Load(ctx, "c", core.ToolKey)
	assert.ErrorIs(t, err, storage.ErrClosed)
	_, err = b.Subscribe(ctx, "c")
	assert.ErrorIs(t, err, storage.ErrClosed)
}
