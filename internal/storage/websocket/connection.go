package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/tablekeep/vtt/pkg/streaming"
)

const (
	sendChSize   = 256
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine.
// Replies are routed to waiters by request id; pushes go to onPush.
type connection struct {
	mu      sync.Mutex
	conn    *ws.Conn
	sendCh  chan []byte
	done    chan struct{} // closed on shutdown
	closed  bool
	pending map[string]chan streaming.AckMessage

	wsURL  string
	secret string

	// Subscribe messages replayed after a reconnect, keyed by campaign.
	subscriptions map[string][]byte

	onPush func(streaming.Envelope)
	logger *slog.Logger
}

func newConnection(logger *slog.Logger, onPush func(streaming.Envelope)) *connection {
	return &connection{
		sendCh:        make(chan []byte, sendChSize),
		done:          make(chan struct{}),
		pending:       make(map[string]chan streaming.AckMessage),
		subscriptions: make(map[string][]byte),
		onPush:        onPush,
		logger:        logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh onto conn. It returns on error or shutdown.
func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop routes acks to their waiters and everything else to onPush.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Malformed message received", "raw", string(message))
			continue
		}
		if env.Type != streaming.TypeAck {
			if c.onPush != nil {
				c.onPush(env)
			}
			continue
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(env.Payload, &ack); err != nil {
			c.logger.Debug("Malformed ack received", "raw", string(message))
			continue
		}
		c.mu.Lock()
		waiter, ok := c.pending[ack.RequestID]
		delete(c.pending, ack.RequestID)
		c.mu.Unlock()
		if ok {
			waiter <- ack
		} else {
			c.logger.Debug("Unmatched ack", "for", ack.For, "requestId", ack.RequestID)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff and
// replays subscriptions. Only the loop that saw the failure on the current
// conn triggers it.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		replay := make([][]byte, 0, len(c.subscriptions))
		for _, msg := range c.subscriptions {
			replay = append(replay, msg)
		}
		c.mu.Unlock()

		ok := true
		for _, msg := range replay {
			if err := writeNow(conn, msg); err != nil {
				c.logger.Warn("Failed to replay subscription after reconnect", "error", err)
				_ = conn.Close()
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		go c.writeLoop(conn)
		go c.readLoop(conn)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

func writeNow(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// send pushes data to the write loop without blocking.
func (c *connection) send(data []byte) error {
	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return errClosed
	default:
		return fmt.Errorf("websocket send queue full")
	}
}

// remember keeps a subscribe message for replay; nil forgets it.
func (c *connection) remember(campaignID string, msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg == nil {
		delete(c.subscriptions, campaignID)
		return
	}
	c.subscriptions[campaignID] = msg
}

// sendAndWait sends data and blocks until the reply for requestID arrives,
// ctx ends, or the ack timeout expires.
func (c *connection) sendAndWait(ctx context.Context, data []byte, requestID string) (streaming.AckMessage, error) {
	waiter := make(chan streaming.AckMessage, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return streaming.AckMessage{}, errClosed
	}
	c.pending[requestID] = waiter
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}

	if err := c.send(data); err != nil {
		forget()
		return streaming.AckMessage{}, err
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()

	select {
	case ack := <-waiter:
		return ack, nil
	case <-timer.C:
		forget()
		return streaming.AckMessage{}, fmt.Errorf("timeout waiting for ack of %q", requestID)
	case <-ctx.Done():
		forget()
		return streaming.AckMessage{}, ctx.Err()
	case <-c.done:
		return streaming.AckMessage{}, errClosed
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
