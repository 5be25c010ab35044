package scene

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/tablekeep/vtt/pkg/core"
)

// TokenFromCharacter seeds a token from a member directory record. Missing
// current hp falls back to max hp.
func TokenFromCharacter(ch core.Character, x, y int) core.Token {
	t := core.Token{
		CharacterID: ch.ID,
		Name:        ch.Name,
		ImageURL:    ch.PortraitURL,
		Size:        core.SizeMedium,
		X:           x,
		Y:           y,
		Layer:       core.LayerTokens,
	}
	if ch.HPMax != nil {
		t.MaxHP = core.Ptr(*ch.HPMax)
		t.HP = core.Ptr(*ch.HPMax)
	}
	if ch.HPCurrent != nil {
		t.HP = core.Ptr(*ch.HPCurrent)
	}
	if ch.ArmorClass != nil {
		t.AC = core.Ptr(*ch.ArmorClass)
	}
	t.ClampHealth()
	return t
}

// PlaceToken appends a token to a scene. Empty ids are generated, size
// defaults to medium and the position is kept on the board.
func (s *Store) PlaceToken(sceneID string, t core.Token) (core.Token, bool) {
	t = t.Clone()
	if t.ID == "" {
		t.ID = s.newID()
	}
	if t.Size == "" {
		t.Size = core.SizeMedium
	}
	t.Layer = t.Layer.Clamp()
	t.ClampHealth()

	var placed core.Token
	ok := s.mutate(sceneID, func(sc *core.Scene) bool {
		if sc.Token(t.ID) != nil {
			return false
		}
		clampPosition(sc, &t)
		sc.Tokens = append(sc.Tokens, t)
		placed = t.Clone()
		return true
	})
	return placed, ok
}

// UpdateToken merges a partial update into a token.
func (s *Store) UpdateToken(sceneID, tokenID string, patch core.TokenPatch) bool {
	return s.mutateToken(sceneID, tokenID, func(sc *core.Scene, t *core.Token) bool {
		patch.Apply(t)
		clampPosition(sc, t)
		return true
	})
}

// AdjustHealth adds delta to hp, clamped to [0, maxHp]. Tokens without both
// values are left alone.
func (s *Store) AdjustHealth(sceneID, tokenID string, delta int) bool {
	return s.mutateToken(sceneID, tokenID, func(_ *core.Scene, t *core.Token) bool {
		if t.HP == nil || t.MaxHP == nil {
			return false
		}
		before := *t.HP
		*t.HP = saturatingAdd(*t.HP, delta)
		t.ClampHealth()
		return *t.HP != before
	})
}

// SetInitiative overwrites the turn-order key. Nil clears it.
func (s *Store) SetInitiative(sceneID, tokenID string, value *float64) bool {
	return s.mutateToken(sceneID, tokenID, func(_ *core.Scene, t *core.Token) bool {
		if value == nil {
			t.Initiative = nil
		} else {
			t.Initiative = core.Ptr(*value)
		}
		return true
	})
}

// ToggleCondition adds the condition tag, or removes it if present.
func (s *Store) ToggleCondition(sceneID, tokenID, condition string) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return false
	}
	return s.mutateToken(sceneID, tokenID, func(_ *core.Scene, t *core.Token) bool {
		if i := slices.Index(t.Conditions, condition); i >= 0 {
			t.Conditions = slices.Delete(t.Conditions, i, i+1)
		} else {
			t.Conditions = append(t.Conditions, condition)
		}
		return true
	})
}

// MoveToken sets a token's cell. Locked tokens do not move.
func (s *Store) MoveToken(sceneID, tokenID string, x, y int) bool {
	return s.mutateToken(sceneID, tokenID, func(sc *core.Scene, t *core.Token) bool {
		if t.Locked {
			return false
		}
		nt := *t
		nt.X, nt.Y = x, y
		clampPosition(sc, &nt)
		if nt.X == t.X && nt.Y == t.Y {
			return false
		}
		t.X, t.Y = nt.X, nt.Y
		return true
	})
}

// RemoveToken deletes a token.
func (s *Store) RemoveToken(sceneID, tokenID string) bool {
	return s.mutate(sceneID, func(sc *core.Scene) bool {
		n := len(sc.Tokens)
		sc.Tokens = slices.DeleteFunc(sc.Tokens, func(t core.Token) bool { return t.ID == tokenID })
		return len(sc.Tokens) != n
	})
}

// Token returns a copy of one token.
func (s *Store) Token(sceneID, tokenID string) (core.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc := s.find(sceneID)
	if sc == nil {
		return core.Token{}, false
	}
	t := sc.Token(tokenID)
	if t == nil {
		return core.Token{}, false
	}
	return t.Clone(), true
}

// InitiativeOrder lists tokens with an initiative, highest first. Ties sort
// by name.
func (s *Store) InitiativeOrder(sceneID string) []core.Token {
	sc, ok := s.Scene(sceneID)
	if !ok {
		return nil
	}
	var out []core.Token
	for _, t := range sc.Tokens {
		if t.Initiative != nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := *out[i].Initiative, *out[j].Initiative
		if a != b {
			return a > b
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Store) mutateToken(sceneID, tokenID string, fn func(*core.Scene, *core.Token) bool) bool {
	return s.mutate(sceneID, func(sc *core.Scene) bool {
		t := sc.Token(tokenID)
		if t == nil {
			return false
		}
		return fn(sc, t)
	})
}

func saturatingAdd(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}
