// Package hub is the websocket relay: clients load and save campaign
// aggregates through it and receive state_changed pushes for the campaigns
// they subscribe to.
package hub

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/tablekeep/vtt/internal/dispatcher"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/streaming"
)

const (
	sendBuffer  = 64
	saveQueue   = 256
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	maxReadSize = 8 << 20
)

// Hub serves the relay over one storage backend.
type Hub struct {
	backend  storage.Backend
	dispatch *dispatcher.Dispatcher
	upgrader ws.Upgrader
	secret   string
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[string]*client
}

// New builds a hub. An empty secret accepts every client.
func New(backend storage.Backend, d *dispatcher.Dispatcher, secret string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		backend:  backend,
		dispatch: d,
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		secret:   secret,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[string]*client),
	}
	h.register()
	return h
}

func (h *Hub) register() {
	h.dispatch.Register(streaming.TypeSubscribe, h.handleSubscribe)
	h.dispatch.Register(streaming.TypeUnsubscribe, h.handleUnsubscribe)
	h.dispatch.Register(streaming.TypeLoadState, h.handleLoad, dispatcher.Logged())
	// saves are applied in arrival order by one worker
	h.dispatch.Register(streaming.TypeSaveState, h.handleSave, dispatcher.Buffered(saveQueue), dispatcher.Blocking(), dispatcher.Logged())
}

// Clients counts connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// ServeHTTP upgrades the request and serves one client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.URL.Query().Get("secret")), []byte(h.secret)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		subs:   make(map[string]context.CancelFunc),
		ctx:    ctx,
		cancel: cancel,
		logger: h.logger,
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("Hub client connected", "client", c.id, "remote", r.RemoteAddr)

	go c.writeLoop()
	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
	h.logger.Info("Hub client disconnected", "client", c.id)
}

func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxReadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				h.logger.Debug("Hub read error", "client", c.id, "error", err)
			}
			return
		}
		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.logger.Debug("Malformed hub message", "client", c.id, "error", err)
			continue
		}
		_, err = h.dispatch.Dispatch(c.ctx, dispatcher.Event{
			Type:     env.Type,
			ClientID: c.id,
			Payload:  env.Payload,
		})
		if err != nil {
			c.reply(env.Type, requestID(env.Payload), err, nil)
		}
	}
}

func (h *Hub) client(id string) (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return nil, fmt.Errorf("client %s gone", id)
	}
	return c, nil
}

func (h *Hub) handleSubscribe(_ context.Context, e dispatcher.Event) (any, error) {
	c, err := h.client(e.ClientID)
	if err != nil {
		return nil, err
	}
	var p streaming.SubscribePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil || p.CampaignID == "" {
		return nil, errors.New("subscribe needs a campaignId")
	}

	subCtx, cancel := context.WithCancel(c.ctx)
	ch, err := h.backend.Subscribe(subCtx, p.CampaignID)
	if err != nil {
		cancel()
		return nil, err
	}
	c.track(p.CampaignID, cancel)

	go func() {
		for n := range ch {
			data, err := streaming.Marshal(streaming.TypeStateChanged, streaming.StateChangedPayload{Notification: n})
			if err != nil {
				continue
			}
			c.push(data)
		}
	}()
	return nil, nil
}

func (h *Hub) handleUnsubscribe(_ context.Context, e dispatcher.Event) (any, error) {
	c, err := h.client(e.ClientID)
	if err != nil {
		return nil, err
	}
	var p streaming.SubscribePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, err
	}
	c.track(p.CampaignID, nil)
	return nil, nil
}

func (h *Hub) handleLoad(ctx context.Context, e dispatcher.Event) (any, error) {
	c, err := h.client(e.ClientID)
	if err != nil {
		return nil, err
	}
	var p streaming.LoadStatePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, err
	}
	rec, err := h.backend.Load(ctx, p.CampaignID, p.ToolKey)
	var payload *streaming.RecordPayload
	if rec != nil {
		wire := streaming.FromRecord(rec)
		payload = &wire
	}
	c.reply(e.Type, p.RequestID, err, payload)
	return nil, nil
}

func (h *Hub) handleSave(ctx context.Context, e dispatcher.Event) (any, error) {
	var p streaming.SaveStatePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		if c, cErr := h.client(e.ClientID); cErr == nil {
			c.reply(e.Type, "", err, nil)
		}
		return nil, err
	}
	// the save stands even if its sender left while it was queued
	err := h.backend.Save(ctx, p.Record.Record())
	if c, cErr := h.client(e.ClientID); cErr == nil {
		c.reply(e.Type, p.RequestID, err, nil)
	}
	return nil, err
}

func requestID(payload json.RawMessage) string {
	var p struct {
		RequestID string `json:"requestId"`
	}
	_ = json.Unmarshal(payload, &p)
	return p.RequestID
}
