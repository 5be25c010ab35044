package storage

import (
	"context"
	"sync"

	"github.com/tablekeep/vtt/pkg/core"
)

// subscriberBuffer bounds each subscriber's queue. A subscriber that falls
// this far behind drops notifications; the next one carries the full state.
const subscriberBuffer = 16

// Broker fans out notifications to per-campaign subscribers in process.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[chan core.Notification]struct{}
	closed bool
	done   chan struct{}
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan core.Notification]struct{}),
		done: make(chan struct{}),
	}
}

// Subscribe registers for a campaign. The channel closes when ctx ends or
// the broker closes.
func (b *Broker) Subscribe(ctx context.Context, campaignID string) (<-chan core.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	ch := make(chan core.Notification, subscriberBuffer)
	set, ok := b.subs[campaignID]
	if !ok {
		set = make(map[chan core.Notification]struct{})
		b.subs[campaignID] = set
	}
	set[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			b.remove(campaignID, ch)
		case <-b.done:
		}
	}()
	return ch, nil
}

func (b *Broker) remove(campaignID string, ch chan core.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[campaignID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(b.subs, campaignID)
	}
}

// Publish delivers n to every subscriber of its campaign without blocking.
// It returns how many subscribers received it.
func (b *Broker) Publish(n core.Notification) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for ch := range b.subs[n.CampaignID] {
		select {
		case ch <- n:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers counts live subscribers of a campaign.
func (b *Broker) Subscribers(campaignID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[campaignID])
}

// Close closes every subscriber channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for id, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, id)
	}
}
