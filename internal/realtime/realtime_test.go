package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/internal/storage/memory"
	"github.com/tablekeep/vtt/pkg/core"
)

type appliedLog struct {
	mu     sync.Mutex
	states []core.State
}

func (a *appliedLog) apply(st core.State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states = append(a.states, st)
}

func (a *appliedLog) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.states)
}

func note(toolKey, by, state string) core.Notification {
	return core.Notification{CampaignID: "c1", ToolKey: toolKey, State: json.RawMessage(state), UpdatedBy: by}
}

func TestHandleFilters(t *testing.T) {
	log := &appliedLog{}
	c, err := New(memory.New(), "", "me", log.apply, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, IgnoredToolKey, c.Handle(ctx, note("chat", "gm", `{"scenes":[]}`)))
	assert.Equal(t, IgnoredSelf, c.Handle(ctx, note(core.ToolKey, "me", `{"scenes":[]}`)))
	assert.Equal(t, Malformed, c.Handle(ctx, note(core.ToolKey, "gm", `{"scenes":"nope"}`)))
	assert.Equal(t, Malformed, c.Handle(ctx, note(core.ToolKey, "gm", `{}`)))
	assert.Equal(t, 0, log.len())

	assert.Equal(t, Applied, c.Handle(ctx, note(core.ToolKey, "gm", `{"scenes":[{"id":"s1","name":"Hall","width":5,"height":5,"gridSize":50}],"currentSceneId":"s1"}`)))
	require.Equal(t, 1, log.len())
	assert.Equal(t, "Hall", log.states[0].Scenes[0].Name)
	require.NotNil(t, log.states[0].CurrentSceneID)
	assert.Equal(t, "s1", *log.states[0].CurrentSceneID)
}

func TestAnonymousUpdateIsApplied(t *testing.T) {
	log := &appliedLog{}
	c, err := New(memory.New(), core.ToolKey, "", log.apply, nil)
	require.NoError(t, err)
	assert.Equal(t, Applied, c.Handle(context.Background(), note(core.ToolKey, "", `{"scenes":[]}`)))
}

func TestStartReceivesRemoteSaves(t *testing.T) {
	b := memory.New()
	defer b.Close()
	log := &appliedLog{}
	c, err := New(b, core.ToolKey, "me", log.apply, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx, "c1"))
	defer c.Stop()
	assert.Error(t, c.Start(ctx, "c1"))

	require.NoError(t, b.Save(ctx, &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: json.RawMessage(`{"scenes":[]}`), UpdatedBy: "me"}))
	require.NoError(t, b.Save(ctx, &core.Record{CampaignID: "c1", ToolKey: core.ToolKey, State: json.RawMessage(`{"scenes":[]}`), UpdatedBy: "gm"}))
	require.NoError(t, b.Save(ctx, &core.Record{CampaignID: "c2", ToolKey: core.ToolKey, State: json.RawMessage(`{"scenes":[]}`), UpdatedBy: "gm"}))

	require.Eventually(t, func() bool { return log.len() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, log.len())
}

func TestStopIsIdempotent(t *testing.T) {
	c, err := New(memory.New(), core.ToolKey, "me", nil, nil)
	require.NoError(t, err)
	c.Stop()
	require.NoError(t, c.Start(context.Background(), "c1"))
	c.Stop()
	c.Stop()
}
