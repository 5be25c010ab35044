// Package scene holds the in-memory scene aggregate and every mutation on
// it. Unknown scene or object ids are no-ops; every mutator reports whether
// state changed. Authority is checked by the caller.
package scene

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tablekeep/vtt/internal/fog"
	"github.com/tablekeep/vtt/pkg/core"
)

// Store is the scenes list plus the current-scene pointer.
type Store struct {
	mu        sync.RWMutex
	scenes    []core.Scene
	currentID *string
	newID     func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the uuid generator, for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the aggregate. SavedAt is left zero for the
// persistence layer to stamp.
func (s *Store) Snapshot() core.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := core.State{Scenes: []core.Scene{}}
	for _, sc := range s.scenes {
		st.Scenes = append(st.Scenes, sc.Clone())
	}
	if s.currentID != nil {
		id := *s.currentID
		st.CurrentSceneID = &id
	}
	return st
}

// Replace overwrites the whole aggregate. Incoming scenes are normalized so
// the store invariants hold even for foreign data.
func (s *Store) Replace(st core.State) {
	scenes := make([]core.Scene, 0, len(st.Scenes))
	for _, sc := range st.Scenes {
		sc = sc.Clone()
		normalize(&sc)
		scenes = append(scenes, sc)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = scenes
	s.currentID = nil
	if st.CurrentSceneID != nil && s.find(*st.CurrentSceneID) != nil {
		id := *st.CurrentSceneID
		s.currentID = &id
	}
}

// Len is the number of scenes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scenes)
}

// Scenes returns copies of all scenes in order.
func (s *Store) Scenes() []core.Scene {
	return s.Snapshot().Scenes
}

// Scene returns a copy of one scene.
func (s *Store) Scene(id string) (core.Scene, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc := s.find(id)
	if sc == nil {
		return core.Scene{}, false
	}
	return sc.Clone(), true
}

// CurrentID returns the current scene id, empty when there is none.
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentID == nil {
		return ""
	}
	return *s.currentID
}

// Current returns a copy of the current scene.
func (s *Store) Current() (core.Scene, bool) {
	return s.Scene(s.CurrentID())
}

// CreateScene appends a new scene with clamped dimensions and makes it
// current.
func (s *Store) CreateScene(name string, width, height int) core.Scene {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled scene"
	}
	sc := core.Scene{
		ID:              s.newID(),
		Name:            name,
		Width:           core.ClampDimension(width),
		Height:          core.ClampDimension(height),
		GridSize:        core.DefaultGridSize,
		BackgroundScale: 1,
		Tokens:          []core.Token{},
		Drawings:        []core.Drawing{},
		Annotations:     []core.Annotation{},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = append(s.scenes, sc)
	id := sc.ID
	s.currentID = &id
	return sc.Clone()
}

// DuplicateScene copies a scene under fresh ids. The current scene is not
// changed.
func (s *Store) DuplicateScene(id string) (core.Scene, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.find(id)
	if src == nil {
		return core.Scene{}, false
	}
	cp := src.Clone()
	cp.ID = s.newID()
	cp.Name = src.Name + " (copy)"
	for i := range cp.Tokens {
		cp.Tokens[i].ID = s.newID()
	}
	for i := range cp.Drawings {
		cp.Drawings[i].ID = s.newID()
	}
	for i := range cp.Annotations {
		cp.Annotations[i].ID = s.newID()
	}
	s.scenes = append(s.scenes, cp)
	return cp.Clone(), true
}

// RenameScene sets a scene's display name. Blank names are ignored.
func (s *Store) RenameScene(id, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	return s.mutate(id, func(sc *core.Scene) bool {
		if sc.Name == name {
			return false
		}
		sc.Name = name
		return true
	})
}

// DeleteScene removes a scene. If it was current, the first remaining scene
// becomes current, or none.
func (s *Store) DeleteScene(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.index(id)
	if idx < 0 {
		return false
	}
	s.scenes = append(s.scenes[:idx], s.scenes[idx+1:]...)
	if s.currentID != nil && *s.currentID == id {
		s.currentID = nil
		if len(s.scenes) > 0 {
			next := s.scenes[0].ID
			s.currentID = &next
		}
	}
	return true
}

// SwitchScene moves the current pointer.
func (s *Store) SwitchScene(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(id) == nil {
		return false
	}
	if s.currentID != nil && *s.currentID == id {
		return false
	}
	s.currentID = &id
	return true
}

// ResizeScene clamps the new dimensions and resizes fog to match, keeping
// the overlap.
func (s *Store) ResizeScene(id string, width, height int) bool {
	width, height = core.ClampDimension(width), core.ClampDimension(height)
	return s.mutate(id, func(sc *core.Scene) bool {
		if sc.Width == width && sc.Height == height {
			return false
		}
		sc.Width, sc.Height = width, height
		if sc.FogData != nil {
			sc.FogData = fog.Resize(sc.FogData, width, height)
		}
		for i := range sc.Tokens {
			clampPosition(sc, &sc.Tokens[i])
		}
		return true
	})
}

// SetGridSize sets the pixel size of one cell, clamped.
func (s *Store) SetGridSize(id string, size int) bool {
	size = core.ClampGridSize(size)
	return s.mutate(id, func(sc *core.Scene) bool {
		if sc.GridSize == size {
			return false
		}
		sc.GridSize = size
		return true
	})
}

// SetBackground records an uploaded background reference. An empty url
// clears it.
func (s *Store) SetBackground(id, url string) bool {
	return s.mutate(id, func(sc *core.Scene) bool {
		if sc.BackgroundImage == url {
			return false
		}
		sc.BackgroundImage = url
		return true
	})
}

// SetBackgroundTransform sets the background scale and offset. Non-positive
// scales reset to 1.
func (s *Store) SetBackgroundTransform(id string, scale, offsetX, offsetY float64) bool {
	if scale <= 0 {
		scale = 1
	}
	return s.mutate(id, func(sc *core.Scene) bool {
		sc.BackgroundScale = scale
		sc.BackgroundOffsetX = offsetX
		sc.BackgroundOffsetY = offsetY
		return true
	})
}

// SetFogEnabled toggles fog for a scene. The first enable starts fully
// hidden; disabling keeps the grid for later.
func (s *Store) SetFogEnabled(id string, enabled bool) bool {
	return s.mutate(id, func(sc *core.Scene) bool {
		if sc.FogOfWar == enabled {
			return false
		}
		sc.FogOfWar = enabled
		if enabled && !fog.Conforms(sc.FogData, sc.Width, sc.Height) {
			sc.FogData = fog.Resize(sc.FogData, sc.Width, sc.Height)
		}
		return true
	})
}

// ResetFog reveals or hides every cell of an enabled fog grid.
func (s *Store) ResetFog(id string, revealed bool) bool {
	return s.mutate(id, func(sc *core.Scene) bool {
		if !sc.FogOfWar {
			return false
		}
		sc.FogData = fog.Initialize(sc.Width, sc.Height, revealed)
		return true
	})
}

// ApplyFogBrush paints one brush stroke. It is a no-op with fog disabled.
func (s *Store) ApplyFogBrush(id string, cx, cy, radius int, mode fog.Mode) bool {
	return s.mutate(id, func(sc *core.Scene) bool {
		if !sc.FogOfWar {
			return false
		}
		if !fog.Conforms(sc.FogData, sc.Width, sc.Height) {
			sc.FogData = fog.Resize(sc.FogData, sc.Width, sc.Height)
		}
		return fog.ApplyBrush(sc.FogData, cx, cy, radius, mode) > 0
	})
}

func (s *Store) mutate(id string, fn func(*core.Scene) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.find(id)
	if sc == nil {
		return false
	}
	return fn(sc)
}

func (s *Store) index(id string) int {
	for i := range s.scenes {
		if s.scenes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) find(id string) *core.Scene {
	if i := s.index(id); i >= 0 {
		return &s.scenes[i]
	}
	return nil
}

func normalize(sc *core.Scene) {
	sc.Width = core.ClampDimension(sc.Width)
	sc.Height = core.ClampDimension(sc.Height)
	sc.GridSize = core.ClampGridSize(sc.GridSize)
	if sc.Tokens == nil {
		sc.Tokens = []core.Token{}
	}
	if sc.Drawings == nil {
		sc.Drawings = []core.Drawing{}
	}
	if sc.Annotations == nil {
		sc.Annotations = []core.Annotation{}
	}
	for i := range sc.Tokens {
		sc.Tokens[i].ClampHealth()
	}
	if sc.FogData != nil && !fog.Conforms(sc.FogData, sc.Width, sc.Height) {
		sc.FogData = fog.Resize(sc.FogData, sc.Width, sc.Height)
	}
}

func clampPosition(sc *core.Scene, t *core.Token) {
	t.X = clamp(t.X, 0, sc.Width-1)
	t.Y = clamp(t.Y, 0, sc.Height-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
