package gormstorage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/internal/database"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
)

// Compile-time interface check
var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Lister  = (*Backend)(nil)
)

func newTestBackend(t *testing.T, deps Dependencies) *Backend {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.OpenSQLite(""))
	t.Cleanup(func() { m.Close() })
	deps.DB = m.DB
	b := New(deps)
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func rec(campaign, by, state string) *core.Record {
	return &core.Record{CampaignID: campaign, ToolKey: core.ToolKey, State: []byte(state), UpdatedBy: by}
}

func TestInit_NoDB(t *testing.T) {
	assert.Error(t, New(Dependencies{}).Init())
}

func TestLoad_Missing(t *testing.T) {
	b := newTestBackend(t, Dependencies{})
	got, err := b.Load(context.Background(), "c1", core.ToolKey)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSave_Upserts(t *testing.T) {
	b := newTestBackend(t, Dependencies{Audit: true})
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, rec("c1", "gm", `{"scenes":[],"currentSceneId":null}`)))
	require.NoError(t, b.Save(ctx, rec("c1", "gm2", `{"scenes":[{"id":"s"}],"currentSceneId":"s"}`)))

	got, err := b.Load(ctx, "c1", core.ToolKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"scenes":[{"id":"s"}],"currentSceneId":"s"}`, string(got.State))
	assert.Equal(t, "gm2", got.UpdatedBy)
	assert.False(t, got.SavedAt.IsZero())

	all, err := b.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	events, err := b.SaveEvents(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "gm2", events[0].UpdatedBy)
	assert.Equal(t, uint64(2), b.Saves())
}

func TestSave_PublishesLocally(t *testing.T) {
	b := newTestBackend(t, Dependencies{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, b.Save(ctx, rec("c1", "gm", `{"scenes":[]}`)))

	select {
	case n := <-ch:
		assert.Equal(t, "gm", n.UpdatedBy)
		assert.JSONEq(t, `{"scenes":[]}`, string(n.State))
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}

func TestSave_CustomNotify(t *testing.T) {
	var notified []string
	b := newTestBackend(t, Dependencies{
		Notify: func(_ context.Context, r *core.Record) error {
			notified = append(notified, r.CampaignID)
			return errors.New("listener down")
		},
	})
	require.NoError(t, b.Save(context.Background(), rec("c9", "gm", `{}`)), "notify failure is not a save failure")
	assert.Equal(t, []string{"c9"}, notified)
}

func TestClosed(t *testing.T) {
	b := newTestBackend(t, Dependencies{})
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Save(context.Background(), rec("c", "gm", `{}`)), storage.ErrClosed)
}
