package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
	"github.com/tablekeep/vtt/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// fakeHub answers load/save requests from an in-memory map and pushes
// state_changed to the connection after each save when it is subscribed.
type fakeHub struct {
	mu       sync.Mutex
	records  map[string]streaming.RecordPayload
	subs     map[string]bool
	messages []streaming.Envelope
	secret   string
}

func (h *fakeHub) log(env streaming.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, env)
}

func (h *fakeHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.messages))
	for i, m := range h.messages {
		out[i] = m.Type
	}
	return out
}

func testServer(t *testing.T) (*httptest.Server, *fakeHub) {
	t.Helper()
	hub := &fakeHub{
		records: make(map[string]streaming.RecordPayload),
		subs:    make(map[string]bool),
	}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.mu.Lock()
		hub.secret = r.URL.Query().Get("secret")
		hub.mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			hub.log(env)

			switch env.Type {
			case streaming.TypeSubscribe:
				var p streaming.SubscribePayload
				_ = json.Unmarshal(env.Payload, &p)
				hub.mu.Lock()
				hub.subs[p.CampaignID] = true
				hub.mu.Unlock()
			case streaming.TypeUnsubscribe:
				var p streaming.SubscribePayload
				_ = json.Unmarshal(env.Payload, &p)
				hub.mu.Lock()
				delete(hub.subs, p.CampaignID)
				hub.mu.Unlock()
			case streaming.TypeLoadState:
				var p streaming.LoadStatePayload
				_ = json.Unmarshal(env.Payload, &p)
				ack := streaming.AckMessage{Type: streaming.TypeAck, For: env.Type, RequestID: p.RequestID}
				hub.mu.Lock()
				if rec, ok := hub.records[p.CampaignID+"/"+p.ToolKey]; ok {
					ack.Record = &rec
				}
				hub.mu.Unlock()
				if p.CampaignID == "forbidden" {
					ack.Error = "forbidden"
				}
				data, _ := streaming.Marshal(streaming.TypeAck, ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			case streaming.TypeSaveState:
				var p streaming.SaveStatePayload
				_ = json.Unmarshal(env.Payload, &p)
				hub.mu.Lock()
				hub.records[p.Record.CampaignID+"/"+p.Record.ToolKey] = p.Record
				subscribed := hub.subs[p.Record.CampaignID]
				hub.mu.Unlock()

				data, _ := streaming.Marshal(streaming.TypeAck, streaming.AckMessage{Type: streaming.TypeAck, For: env.Type, RequestID: p.RequestID})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
				if subscribed {
					push, _ := streaming.Marshal(streaming.TypeStateChanged, streaming.StateChangedPayload{
						Notification: core.Notification{
							CampaignID: p.Record.CampaignID,
							ToolKey:    p.Record.ToolKey,
							State:      p.Record.State,
							UpdatedBy:  p.Record.UpdatedBy,
						},
					})
					if err := c.WriteMessage(ws.TextMessage, push); err != nil {
						return
					}
				}
			}
		}
	}))
	return srv, hub
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestLoadMissingRecord(t *testing.T) {
	srv, hub := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	rec, err := b.Load(context.Background(), "c1", core.ToolKey)
	require.NoError(t, err)
	assert.Nil(t, rec)

	hub.mu.Lock()
	assert.Equal(t, "test", hub.secret)
	hub.mu.Unlock()
}

func TestSaveThenLoad(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Save(ctx, &core.Record{
		CampaignID: "c1",
		ToolKey:    core.ToolKey,
		State:      json.RawMessage(`{"scenes":[]}`),
		UpdatedBy:  "u1",
	}))

	rec, err := b.Load(ctx, "c1", core.ToolKey)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.JSONEq(t, `{"scenes":[]}`, string(rec.State))
	assert.Equal(t, "u1", rec.UpdatedBy)
	assert.False(t, rec.SavedAt.IsZero())
}

func TestHubErrorIsReturned(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	_, err := b.Load(context.Background(), "forbidden", core.ToolKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestSubscribeReceivesPush(t *testing.T) {
	srv, hub := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := b.Subscribe(ctx, "c1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return hub.subs["c1"]
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Save(ctx, &core.Record{
		CampaignID: "c1",
		ToolKey:    core.ToolKey,
		State:      json.RawMessage(`{"scenes":[]}`),
		UpdatedBy:  "u2",
	}))

	select {
	case n := <-ch:
		assert.Equal(t, "c1", n.CampaignID)
		assert.Equal(t, "u2", n.UpdatedBy)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestUnsubscribeAfterLastSubscriberLeaves(t *testing.T) {
	srv, hub := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	_, err := b.Subscribe(ctx1, "c1")
	require.NoError(t, err)
	_, err = b.Subscribe(ctx2, "c1")
	require.NoError(t, err)

	// the subscribe has to reach the hub before the subscribers leave
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return hub.subs["c1"]
	}, 2*time.Second, 10*time.Millisecond)

	cancel1()
	cancel2()

	require.Eventually(t, func() bool {
		for _, typ := range hub.types() {
			if typ == streaming.TypeUnsubscribe {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	hub.mu.Lock()
	assert.False(t, hub.subs["c1"])
	hub.mu.Unlock()

	subscribes := 0
	for _, typ := range hub.types() {
		if typ == streaming.TypeSubscribe {
			subscribes++
		}
	}
	assert.Equal(t, 1, subscribes)
}

func TestLoadHonoursContext(t *testing.T) {
	// Server that never replies.
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.Load(ctx, "c1", core.ToolKey)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOperationsAfterClose(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Load(context.Background(), "c1", core.ToolKey)
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestInitFailsWithoutServer(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1"}, nil)
	assert.Error(t, b.Init())
}
