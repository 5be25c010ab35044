package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
)

func TestBroker_PublishScopedToCampaign(t *testing.T) {
	b := storage.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := b.Subscribe(ctx, "camp-a")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, "camp-b")
	require.NoError(t, err)

	n := b.Publish(core.Notification{CampaignID: "camp-a", ToolKey: core.ToolKey, UpdatedBy: "gm"})
	assert.Equal(t, 1, n)

	select {
	case got := <-a:
		assert.Equal(t, "gm", got.UpdatedBy)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
	select {
	case <-other:
		t.Fatal("leaked across campaigns")
	default:
	}
}

func TestBroker_DropsWhenFull(t *testing.T) {
	b := storage.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := b.Subscribe(ctx, "c")
	require.NoError(t, err)

	delivered := 0
	for i := 0; i < 100; i++ {
		delivered += b.Publish(core.Notification{CampaignID: "c"})
	}
	assert.Less(t, delivered, 100)
}

func TestBroker_UnsubscribeOnCancel(t *testing.T) {
	b := storage.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("c"))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Equal(t, 0, b.Subscribers("c"))
}

func TestBroker_Close(t *testing.T) {
	b := storage.NewBroker()
	ch, err := b.Subscribe(context.Background(), "c")
	require.NoError(t, err)
	b.Close()
	_, ok := <-ch
	assert.False(t, ok)

	_, err = b.Subscribe(context.Background(), "c")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestNotificationFor(t *testing.T) {
	rec := &core.Record{CampaignID: "c", ToolKey: core.ToolKey, State: []byte(`{}`), UpdatedBy: "u"}
	n := storage.NotificationFor(rec)
	assert.Equal(t, "c", n.CampaignID)
	assert.Equal(t, "u", n.UpdatedBy)
	rec.State[0] = 'x'
	assert.Equal(t, byte('{'), n.State[0])
}
