// Package session is one client's engine: it composes the shared scene
// store with the local view model, gates mutations on role, and wires the
// debounced gateway and the realtime channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tablekeep/vtt/internal/authority"
	"github.com/tablekeep/vtt/internal/logging"
	"github.com/tablekeep/vtt/internal/persist"
	"github.com/tablekeep/vtt/internal/realtime"
	"github.com/tablekeep/vtt/internal/scene"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/internal/viewmodel"
	"github.com/tablekeep/vtt/pkg/core"
)

// ErrNoUploader is returned by UploadBackground without an image store.
var ErrNoUploader = errors.New("no background image store configured")

// Uploader stores a background image and returns its url.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

// Options configures a Session.
type Options struct {
	CampaignID string
	Identity   core.Identity
	Backend    storage.Backend
	ToolKey    string
	Debounce   time.Duration
	Uploader   Uploader
	Legacy     persist.LegacySource
	Telemetry  persist.Telemetry
	Logger     *slog.Logger
	// OnNotice receives transient boundary failures.
	OnNotice func(error)
	// IDs overrides id generation for tests.
	IDs func() string
}

// Session is the engine of one connected client.
type Session struct {
	campaignID string
	identity   core.Identity

	gate     *authority.Gate
	store    *scene.Store
	gateway  *persist.Gateway
	channel  *realtime.Channel
	uploader Uploader
	logger   *slog.Logger
	onNotice func(error)

	mu   sync.Mutex // guards view and compound store+view updates
	view *viewmodel.Model

	// remote snapshots that arrive before hydration finishes wait here
	hydrated bool
	early    *core.State
}

// New builds a session. Nothing is loaded until Start.
func New(opts Options) (*Session, error) {
	if opts.Backend == nil {
		return nil, errors.New("session: backend is required")
	}
	role := opts.Identity.Role()
	logger := logging.SessionLogger(opts.Logger, func() (string, string, string) {
		return opts.CampaignID, opts.Identity.UserID, role.String()
	})

	s := &Session{
		campaignID: opts.CampaignID,
		identity:   opts.Identity,
		gate:       authority.New(role, logger),
		uploader:   opts.Uploader,
		logger:     logger,
		onNotice:   opts.OnNotice,
		view:       viewmodel.New(),
	}
	var storeOpts []scene.Option
	if opts.IDs != nil {
		storeOpts = append(storeOpts, scene.WithIDGenerator(opts.IDs))
	}
	s.store = scene.NewStore(storeOpts...)

	var err error
	s.gateway, err = persist.New(opts.Backend, persist.Options{
		CampaignID: opts.CampaignID,
		UserID:     opts.Identity.UserID,
		ToolKey:    opts.ToolKey,
		Debounce:   opts.Debounce,
		Logger:     logger,
		Legacy:     opts.Legacy,
		Telemetry:  opts.Telemetry,
		OnError:    s.notice,
	})
	if err != nil {
		return nil, err
	}
	s.channel, err = realtime.New(opts.Backend, opts.ToolKey, opts.Identity.UserID, s.applyRemote, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start subscribes to remote changes and then hydrates the store, so a save
// landing between the two is not missed. A snapshot received during
// hydration wins unless it is older than the hydrated one.
func (s *Session) Start(ctx context.Context) (persist.Hydration, error) {
	if err := s.channel.Start(ctx, s.campaignID); err != nil {
		return persist.Hydration{Source: persist.SourceEmpty}, err
	}
	h, err := s.gateway.Hydrate(ctx, s.gate.Role())
	if err != nil {
		s.channel.Stop()
		return h, err
	}
	s.mu.Lock()
	s.store.Replace(h.State)
	if s.early != nil && !s.early.SavedAt.Before(h.State.SavedAt) {
		s.store.Replace(*s.early)
	}
	s.early = nil
	s.hydrated = true
	s.reconcile()
	s.mu.Unlock()
	s.logger.Info("Session hydrated", "source", string(h.Source), "scenes", s.store.Len())
	return h, nil
}

// Flush persists a pending save now.
func (s *Session) Flush(ctx context.Context) error {
	return s.gateway.Flush(ctx)
}

// Close unsubscribes and stops the gateway. A save still inside the debounce
// window is lost; call Flush first to keep it.
func (s *Session) Close() {
	s.channel.Stop()
	s.gateway.Close()
}

// Role is the viewer's resolved role.
func (s *Session) Role() core.Role { return s.gate.Role() }

// CanWrite reports whether shared-state mutations are enabled.
func (s *Session) CanWrite() bool { return s.gate.CanWrite() }

// State returns a copy of the shared aggregate.
func (s *Session) State() core.State { return s.store.Snapshot() }

// Pending reports whether a debounced save is waiting.
func (s *Session) Pending() bool { return s.gateway.Pending() }

// changed feeds the debounced pipeline after a shared mutation.
func (s *Session) changed(ok bool) bool {
	if ok {
		s.gateway.Schedule(s.persistedSnapshot)
	}
	return ok
}

// persistedSnapshot is the aggregate as it may be saved: a token under an
// active drag is kept at its origin.
func (s *Session) persistedSnapshot() core.State {
	st := s.store.Snapshot()
	s.mu.Lock()
	d, dragging := s.view.Drag()
	s.mu.Unlock()
	if !dragging || !d.Moved {
		return st
	}
	for i := range st.Scenes {
		if st.Scenes[i].ID != d.SceneID {
			continue
		}
		if t := st.Scenes[i].Token(d.TokenID); t != nil {
			t.X, t.Y = d.OriginX, d.OriginY
		}
	}
	return st
}

func (s *Session) notice(err error) {
	s.logger.Warn("Transient failure", "error", err)
	if s.onNotice != nil {
		s.onNotice(err)
	}
}

// applyRemote replaces the shared state with a remote aggregate and keeps
// the local gestures that still make sense.
func (s *Session) applyRemote(st core.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hydrated {
		s.early = &st
		return
	}
	s.store.Replace(st)
	s.reconcile()
}

// reconcile drops local references the shared state no longer backs. An
// active drag keeps its latest local position. Callers hold s.mu.
func (s *Session) reconcile() {
	if d, ok := s.view.Drag(); ok {
		if _, exists := s.store.Token(d.SceneID, d.TokenID); exists {
			s.store.MoveToken(d.SceneID, d.TokenID, d.X, d.Y)
		} else {
			s.view.CancelDrag()
		}
	}
	if sel := s.view.Selected(); sel != "" {
		if _, exists := s.store.Token(s.store.CurrentID(), sel); !exists {
			s.view.ClearSelectionIf(sel)
		}
	}
	if d, ok := s.view.Draft(); ok {
		if _, exists := s.store.Scene(d.SceneID); !exists {
			s.view.CancelDraft()
		}
	}
}

func (s *Session) currentID() (string, bool) {
	id := s.store.CurrentID()
	return id, id != ""
}

func (s *Session) allow(op string) bool {
	return s.gate.Allow(op)
}

func wrapUpload(err error) error {
	return fmt.Errorf("upload background: %w", err)
}
