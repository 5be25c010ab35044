package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/streaming"
)

// client is one connection. Only writeLoop writes to conn.
type client struct {
	id     string
	conn   *ws.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]context.CancelFunc
	closed bool
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			_ = c.conn.Close()
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Debug("Hub write error", "client", c.id, "error", err)
				c.cancel()
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				c.cancel()
				_ = c.conn.Close()
				return
			}
		}
	}
}

// push queues a message. A client too slow to drain its queue loses pushes;
// every push carries the whole aggregate, so the next one catches it up.
func (c *client) push(data []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	case c.send <- data:
		return true
	default:
		c.logger.Warn("Dropping push for slow client", "client", c.id)
		return false
	}
}

// reply sends an ack. Acks wait for queue space so a request never goes
// unanswered while the client is connected.
func (c *client) reply(forType, requestID string, err error, rec *streaming.RecordPayload) {
	ack := streaming.AckMessage{
		Type:      streaming.TypeAck,
		For:       forType,
		RequestID: requestID,
		Record:    rec,
	}
	if err != nil {
		ack.Error = err.Error()
		if errors.Is(err, storage.ErrClosed) {
			ack.Error = "storage unavailable"
		}
	}
	data, mErr := streaming.Marshal(streaming.TypeAck, ack)
	if mErr != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	}
}

// track replaces the subscription of a campaign; a nil cancel removes it.
func (c *client) track(campaignID string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.subs[campaignID]; ok {
		prev()
		delete(c.subs, campaignID)
	}
	if cancel == nil {
		return
	}
	if c.closed {
		cancel()
		return
	}
	c.subs[campaignID] = cancel
}

func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, cancel := range c.subs {
		cancel()
		delete(c.subs, id)
	}
	c.mu.Unlock()
	c.cancel()
}
