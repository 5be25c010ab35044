package session

import (
	"github.com/tablekeep/vtt/internal/scene"
	"github.com/tablekeep/vtt/internal/viewmodel"
	"github.com/tablekeep/vtt/pkg/core"
)

// Drag is an in-progress token drag.
type Drag = viewmodel.Drag

// PlaceToken adds a token to the current scene.
func (s *Session) PlaceToken(t core.Token) (core.Token, bool) {
	if !s.allow("place_token") {
		return core.Token{}, false
	}
	id, ok := s.currentID()
	if !ok {
		return core.Token{}, false
	}
	placed, ok := s.store.PlaceToken(id, t)
	return placed, s.changed(ok)
}

// PlaceCharacter adds a token seeded from a member directory record.
func (s *Session) PlaceCharacter(ch core.Character, x, y int) (core.Token, bool) {
	return s.PlaceToken(scene.TokenFromCharacter(ch, x, y))
}

// UpdateToken merges a partial update into a token of the current scene.
func (s *Session) UpdateToken(tokenID string, patch core.TokenPatch) bool {
	return s.onToken("update_token", func(sceneID string) bool {
		return s.store.UpdateToken(sceneID, tokenID, patch)
	})
}

// AdjustHealth adds delta to a token's hp, clamped to [0, maxHp].
func (s *Session) AdjustHealth(tokenID string, delta int) bool {
	return s.onToken("adjust_health", func(sceneID string) bool {
		return s.store.AdjustHealth(sceneID, tokenID, delta)
	})
}

// SetInitiative sets or clears a token's initiative.
func (s *Session) SetInitiative(tokenID string, value *float64) bool {
	return s.onToken("set_initiative", func(sceneID string) bool {
		return s.store.SetInitiative(sceneID, tokenID, value)
	})
}

// ToggleCondition adds or removes a condition tag.
func (s *Session) ToggleCondition(tokenID, condition string) bool {
	return s.onToken("toggle_condition", func(sceneID string) bool {
		return s.store.ToggleCondition(sceneID, tokenID, condition)
	})
}

// RemoveToken deletes a token and clears the selection if it pointed at it.
func (s *Session) RemoveToken(tokenID string) bool {
	return s.onToken("remove_token", func(sceneID string) bool {
		if !s.store.RemoveToken(sceneID, tokenID) {
			return false
		}
		s.mu.Lock()
		s.view.ClearSelectionIf(tokenID)
		if d, ok := s.view.Drag(); ok && d.TokenID == tokenID {
			s.view.CancelDrag()
		}
		s.mu.Unlock()
		return true
	})
}

// BeginDrag starts dragging a token of the current scene. Locked tokens
// cannot be dragged.
func (s *Session) BeginDrag(tokenID string) bool {
	if !s.allow("drag_token") {
		return false
	}
	id, ok := s.currentID()
	if !ok {
		return false
	}
	t, ok := s.store.Token(id, tokenID)
	if !ok || t.Locked {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.BeginDrag(id, t)
	return true
}

// DragTo moves the dragged token locally. Intermediate positions are never
// persisted.
func (s *Session) DragTo(x, y int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.view.Drag()
	if !ok {
		return false
	}
	if !s.store.MoveToken(d.SceneID, d.TokenID, x, y) {
		return false
	}
	t, _ := s.store.Token(d.SceneID, d.TokenID)
	s.view.MoveDrag(t.X, t.Y)
	return true
}

// EndDrag finishes the drag. Only a drag that moved the token is saved.
func (s *Session) EndDrag() bool {
	s.mu.Lock()
	d, ok := s.view.EndDrag()
	s.mu.Unlock()
	if !ok || !d.Moved {
		return false
	}
	return s.changed(true)
}

// Select marks a token as selected locally.
func (s *Session) Select(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Select(tokenID)
}

// Selected is the locally selected token id.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Selected()
}

// DragState returns the active drag.
func (s *Session) DragState() (Drag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Drag()
}

// InitiativeOrder is the turn order of the current scene as this viewer
// sees it.
func (s *Session) InitiativeOrder() []core.Token {
	id, ok := s.currentID()
	if !ok {
		return nil
	}
	order := s.store.InitiativeOrder(id)
	if s.gate.CanWrite() {
		return order
	}
	visible := s.View().Tokens
	seen := make(map[string]bool, len(visible))
	for _, t := range visible {
		seen[t.ID] = true
	}
	out := order[:0]
	for _, t := range order {
		if seen[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func (s *Session) onToken(op string, fn func(sceneID string) bool) bool {
	if !s.allow(op) {
		return false
	}
	id, ok := s.currentID()
	if !ok {
		return false
	}
	return s.changed(fn(id))
}
