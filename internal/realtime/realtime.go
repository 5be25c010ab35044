// Package realtime applies remote change notifications to a session.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tablekeep/vtt/internal/persist"
	"github.com/tablekeep/vtt/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tablekeep/vtt/internal/realtime"

// Outcome is what happened to one notification.
type Outcome int

const (
	Applied Outcome = iota
	IgnoredToolKey
	IgnoredSelf
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case IgnoredToolKey:
		return "ignored_tool_key"
	case IgnoredSelf:
		return "ignored_self"
	case Malformed:
		return "malformed"
	}
	return "unknown"
}

// Subscriber is the part of a storage backend the channel needs.
type Subscriber interface {
	Subscribe(ctx context.Context, campaignID string) (<-chan core.Notification, error)
}

// ApplyFunc merges a remote aggregate into local state.
type ApplyFunc func(core.State)

// Channel filters notifications for one session and hands accepted
// aggregates to apply.
type Channel struct {
	sub     Subscriber
	toolKey string
	selfID  string
	apply   ApplyFunc
	logger  *slog.Logger

	received metric.Int64Counter

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a channel. selfID is the local user id used for echo
// suppression.
func New(sub Subscriber, toolKey, selfID string, apply ApplyFunc, logger *slog.Logger) (*Channel, error) {
	if toolKey == "" {
		toolKey = core.ToolKey
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Channel{
		sub:     sub,
		toolKey: toolKey,
		selfID:  selfID,
		apply:   apply,
		logger:  logger,
	}
	var err error
	c.received, err = otel.Meter(instrumentationName).Int64Counter(
		"realtime.notifications",
		metric.WithDescription("Change notifications received, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notifications counter: %w", err)
	}
	return c, nil
}

// Handle filters and applies one notification.
func (c *Channel) Handle(ctx context.Context, n core.Notification) Outcome {
	out := c.handle(n)
	c.received.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", out.String())))
	return out
}

func (c *Channel) handle(n core.Notification) Outcome {
	if n.ToolKey != c.toolKey {
		return IgnoredToolKey
	}
	if n.UpdatedBy != "" && n.UpdatedBy == c.selfID {
		return IgnoredSelf
	}
	st, err := persist.Decode(n.State)
	if err != nil {
		c.logger.Warn("Skipping malformed remote snapshot", "error", err, "updatedBy", n.UpdatedBy)
		return Malformed
	}
	if c.apply != nil {
		c.apply(st)
	}
	c.logger.Debug("Applied remote snapshot", "scenes", len(st.Scenes), "updatedBy", n.UpdatedBy)
	return Applied
}

// Start subscribes to the campaign and handles notifications until Stop or
// ctx ends.
func (c *Channel) Start(ctx context.Context, campaignID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("realtime channel already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	ch, err := c.sub.Subscribe(ctx, campaignID)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", campaignID, err)
	}
	c.cancel = cancel
	c.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-ch:
				if !ok {
					return
				}
				c.Handle(ctx, n)
			}
		}
	}(c.done)
	return nil
}

// Stop ends the subscription and waits for the handler goroutine.
func (c *Channel) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
