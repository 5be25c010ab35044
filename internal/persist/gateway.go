// Package persist moves the scene aggregate between the in-memory store and
// a storage backend: debounced saves after mutations, hydration on session
// start, and one-shot promotion of the legacy local cache.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tablekeep/vtt/internal/persist"

// DefaultDebounce is the quiet period before a scheduled save runs.
const DefaultDebounce = 800 * time.Millisecond

// saveTimeout bounds a save started by the debounce timer.
const saveTimeout = 15 * time.Second

// Telemetry receives one call per save attempt.
type Telemetry interface {
	RecordSave(ctx context.Context, campaignID, toolKey string, size int, took time.Duration, err error)
}

// LegacySource is the pre-durable local cache.
type LegacySource interface {
	Read(campaignID string) (*core.State, error)
	MarkMigrated(campaignID string) error
}

// Options configures a Gateway.
type Options struct {
	CampaignID string
	UserID     string
	ToolKey    string
	Debounce   time.Duration
	Logger     *slog.Logger
	Legacy     LegacySource
	Telemetry  Telemetry
	// OnError receives save and promotion failures as transient notices.
	OnError func(error)
}

// Source tells where a hydrated aggregate came from.
type Source string

const (
	SourceEmpty   Source = "empty"
	SourceDurable Source = "durable"
	SourceLegacy  Source = "legacy"
)

// Hydration is the result of loading a session's starting state.
type Hydration struct {
	State    core.State
	Source   Source
	Promoted bool
}

// Gateway is the debounced save pipeline of one client session.
type Gateway struct {
	backend storage.Backend
	opts    Options
	logger  *slog.Logger
	attrs   metric.MeasurementOption

	mu       sync.Mutex
	timer    *time.Timer
	snapshot func() core.State
	gen      uint64 // bumped by every Schedule, Flush and Close
	closed   bool

	saving sync.Mutex // one save in flight

	saves     metric.Int64Counter
	failures  metric.Int64Counter
	coalesced metric.Int64Counter
}

// New creates a gateway over backend. The global OTel meter is used for
// metrics (no-op if not configured).
func New(backend storage.Backend, opts Options) (*Gateway, error) {
	if opts.ToolKey == "" {
		opts.ToolKey = core.ToolKey
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Gateway{
		backend: backend,
		opts:    opts,
		logger:  logger,
		attrs:   metric.WithAttributes(attribute.String("tool", opts.ToolKey)),
	}

	m := otel.Meter(instrumentationName)
	var err error
	g.saves, err = m.Int64Counter("persist.saves", metric.WithDescription("Aggregate saves written"))
	if err != nil {
		return nil, fmt.Errorf("creating saves counter: %w", err)
	}
	g.failures, err = m.Int64Counter("persist.save.failures", metric.WithDescription("Aggregate saves that failed"))
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	g.coalesced, err = m.Int64Counter("persist.saves.coalesced", metric.WithDescription("Scheduled saves superseded by a later mutation"))
	if err != nil {
		return nil, fmt.Errorf("creating coalesced counter: %w", err)
	}
	return g, nil
}

// Debounce is the effective quiet period.
func (g *Gateway) Debounce() time.Duration { return g.opts.Debounce }

// Schedule arms the debounce timer, replacing any pending save. When the
// timer fires, snapshot is called and its result is saved.
func (g *Gateway) Schedule(snapshot func() core.State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	if g.timer != nil && g.timer.Stop() {
		g.coalesced.Add(context.Background(), 1, g.attrs)
	}
	g.gen++
	gen := g.gen
	g.snapshot = snapshot
	g.timer = time.AfterFunc(g.opts.Debounce, func() { g.fire(gen) })
}

// Pending reports whether a scheduled save has not run yet.
func (g *Gateway) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot != nil
}

func (g *Gateway) take(gen uint64) func() core.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || gen != g.gen {
		return nil
	}
	fn := g.snapshot
	g.snapshot = nil
	g.timer = nil
	return fn
}

func (g *Gateway) fire(gen uint64) {
	g.saving.Lock()
	defer g.saving.Unlock()
	fn := g.take(gen)
	if fn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := g.save(ctx, fn()); err != nil {
		g.notify(err)
	}
}

// Flush runs a pending save now. Without one it waits for a save the timer
// already started, so a following Close cannot race that write.
func (g *Gateway) Flush(ctx context.Context) error {
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
	}
	g.gen++
	gen := g.gen
	g.mu.Unlock()

	g.saving.Lock()
	defer g.saving.Unlock()
	fn := g.take(gen)
	if fn == nil {
		return nil
	}
	return g.save(ctx, fn())
}

// Close stops the pipeline. A pending save is dropped.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.gen++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	if g.snapshot != nil {
		g.logger.Debug("Dropping pending save on close")
	}
	g.snapshot = nil
}

// Save writes st immediately, stamping savedAt.
func (g *Gateway) Save(ctx context.Context, st core.State) error {
	g.saving.Lock()
	defer g.saving.Unlock()
	return g.save(ctx, st)
}

// save needs g.saving held.
func (g *Gateway) save(ctx context.Context, st core.State) error {
	st.SavedAt = time.Now().UTC()
	raw, err := Encode(st)
	if err != nil {
		return err
	}
	rec := &core.Record{
		CampaignID: g.opts.CampaignID,
		ToolKey:    g.opts.ToolKey,
		State:      raw,
		UpdatedBy:  g.opts.UserID,
		SavedAt:    st.SavedAt,
	}

	start := time.Now()
	err = g.backend.Save(ctx, rec)
	took := time.Since(start)
	if g.opts.Telemetry != nil {
		g.opts.Telemetry.RecordSave(ctx, g.opts.CampaignID, g.opts.ToolKey, len(raw), took, err)
	}
	if err != nil {
		g.failures.Add(ctx, 1, g.attrs)
		g.logger.Warn("Save failed", "error", err, "duration", took)
		return fmt.Errorf("save %s: %w", g.opts.ToolKey, err)
	}
	g.saves.Add(ctx, 1, g.attrs)
	g.logger.Debug("Saved aggregate", "scenes", len(st.Scenes), "bytes", len(raw), "duration", took)
	return nil
}

// Hydrate loads the session's starting aggregate. Without a durable record
// the legacy cache is used; a GM promotes it to durable storage once.
// Promotion failures go to OnError and leave Promoted false.
func (g *Gateway) Hydrate(ctx context.Context, role core.Role) (Hydration, error) {
	rec, err := g.backend.Load(ctx, g.opts.CampaignID, g.opts.ToolKey)
	if err != nil {
		return Hydration{Source: SourceEmpty}, fmt.Errorf("load %s: %w", g.opts.ToolKey, err)
	}
	if rec != nil {
		st, err := Decode(rec.State)
		if err != nil {
			return Hydration{Source: SourceEmpty}, err
		}
		return Hydration{State: st, Source: SourceDurable}, nil
	}

	if g.opts.Legacy == nil {
		return Hydration{Source: SourceEmpty}, nil
	}
	cached, err := g.opts.Legacy.Read(g.opts.CampaignID)
	if err != nil {
		g.logger.Warn("Ignoring unreadable legacy cache", "error", err)
		return Hydration{Source: SourceEmpty}, nil
	}
	if cached == nil {
		return Hydration{Source: SourceEmpty}, nil
	}

	h := Hydration{State: *cached, Source: SourceLegacy}
	if !role.IsGM() {
		return h, nil
	}
	if err := g.Save(ctx, *cached); err != nil {
		g.notify(fmt.Errorf("promote legacy cache: %w", err))
		return h, nil
	}
	if err := g.opts.Legacy.MarkMigrated(g.opts.CampaignID); err != nil {
		g.logger.Warn("Failed to mark legacy cache migrated", "error", err)
	}
	g.logger.Info("Promoted legacy cache", "scenes", len(cached.Scenes))
	h.Promoted = true
	return h, nil
}

func (g *Gateway) notify(err error) {
	if g.opts.OnError != nil {
		g.opts.OnError(err)
		return
	}
	g.logger.Error("Persistence error", "error", err)
}
