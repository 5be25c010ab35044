package scene

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/internal/fog"
	"github.com/tablekeep/vtt/pkg/core"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore() *Store {
	return NewStore(WithIDGenerator(seqIDs()))
}

func TestCreateScene_ClampsAndBecomesCurrent(t *testing.T) {
	s := newTestStore()
	sc := s.CreateScene("  Crypt ", 2, 500)

	assert.Equal(t, "Crypt", sc.Name)
	assert.Equal(t, core.MinDimension, sc.Width)
	assert.Equal(t, core.MaxDimension, sc.Height)
	assert.Equal(t, core.DefaultGridSize, sc.GridSize)
	assert.Equal(t, sc.ID, s.CurrentID())

	second := s.CreateScene("", 20, 20)
	assert.Equal(t, "Untitled scene", second.Name)
	assert.Equal(t, second.ID, s.CurrentID())
	assert.Equal(t, 2, s.Len())
}

func TestDeleteScene_MovesCurrent(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)
	b := s.CreateScene("B", 10, 10)

	require.True(t, s.DeleteScene(b.ID))
	assert.Equal(t, a.ID, s.CurrentID())

	require.True(t, s.DeleteScene(a.ID))
	assert.Empty(t, s.CurrentID())
	assert.Nil(t, s.Snapshot().CurrentSceneID)

	assert.False(t, s.DeleteScene("missing"))
}

func TestSwitchScene(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)
	s.CreateScene("B", 10, 10)

	assert.True(t, s.SwitchScene(a.ID))
	assert.False(t, s.SwitchScene(a.ID))
	assert.False(t, s.SwitchScene("nope"))
	assert.Equal(t, a.ID, s.CurrentID())
}

func TestRenameAndDuplicate(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)
	_, ok := s.PlaceToken(a.ID, core.Token{Name: "Goblin"})
	require.True(t, ok)

	assert.True(t, s.RenameScene(a.ID, "Keep"))
	assert.False(t, s.RenameScene(a.ID, "  "))

	cp, ok := s.DuplicateScene(a.ID)
	require.True(t, ok)
	assert.Equal(t, "Keep (copy)", cp.Name)
	assert.NotEqual(t, a.ID, cp.ID)
	require.Len(t, cp.Tokens, 1)
	orig, _ := s.Scene(a.ID)
	assert.NotEqual(t, orig.Tokens[0].ID, cp.Tokens[0].ID)
	assert.Equal(t, a.ID, s.CurrentID())
}

func TestResizeScene_ResizesFog(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 20, 20)
	require.True(t, s.SetFogEnabled(a.ID, true))
	require.True(t, s.ApplyFogBrush(a.ID, 2, 2, 0, fog.Reveal))

	require.True(t, s.ResizeScene(a.ID, 30, 15))
	sc, _ := s.Scene(a.ID)
	assert.True(t, fog.Conforms(sc.FogData, 30, 15))
	assert.True(t, fog.Grid(sc.FogData).Revealed(2, 2))
	for x := 15; x < 30; x++ {
		assert.False(t, fog.Grid(sc.FogData).Revealed(x, 0))
	}

	assert.True(t, s.ResizeScene(a.ID, 1, 1))
	sc, _ = s.Scene(a.ID)
	assert.Equal(t, core.MinDimension, sc.Width)
	assert.False(t, s.ResizeScene("missing", 10, 10))
}

func TestResizeScene_KeepsTokensOnBoard(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 20, 20)
	tok, _ := s.PlaceToken(a.ID, core.Token{Name: "Far", X: 18, Y: 18})
	s.ResizeScene(a.ID, 10, 10)
	got, _ := s.Token(a.ID, tok.ID)
	assert.Equal(t, 9, got.X)
	assert.Equal(t, 9, got.Y)
}

func TestFog_EnableResetBrush(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)

	assert.False(t, s.ApplyFogBrush(a.ID, 1, 1, 1, fog.Reveal), "fog disabled")
	assert.False(t, s.ResetFog(a.ID, true), "fog disabled")

	require.True(t, s.SetFogEnabled(a.ID, true))
	sc, _ := s.Scene(a.ID)
	assert.Zero(t, fog.RevealedCount(sc.FogData))

	assert.True(t, s.ResetFog(a.ID, true))
	sc, _ = s.Scene(a.ID)
	assert.Equal(t, 100, fog.RevealedCount(sc.FogData))

	assert.False(t, s.ApplyFogBrush(a.ID, 1, 1, 1, fog.Reveal), "already revealed")
	assert.True(t, s.ApplyFogBrush(a.ID, 1, 1, 1, fog.Hide))
}

func TestSetGridSizeAndBackground(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)
	assert.True(t, s.SetGridSize(a.ID, 5))
	sc, _ := s.Scene(a.ID)
	assert.Equal(t, core.MinGridSize, sc.GridSize)

	assert.True(t, s.SetBackground(a.ID, "https://cdn/map.webp"))
	assert.False(t, s.SetBackground(a.ID, "https://cdn/map.webp"))
	assert.True(t, s.SetBackgroundTransform(a.ID, 0, 10, -4))
	sc, _ = s.Scene(a.ID)
	assert.Equal(t, 1.0, sc.BackgroundScale)
	assert.Equal(t, -4.0, sc.BackgroundOffsetY)
}

func TestSnapshot_IsDetached(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)
	snap := s.Snapshot()
	snap.Scenes[0].Name = "changed"
	sc, _ := s.Scene(a.ID)
	assert.Equal(t, "A", sc.Name)
}

func TestReplace_Normalizes(t *testing.T) {
	s := newTestStore()
	missing := "gone"
	s.Replace(core.State{
		Scenes: []core.Scene{{
			ID: "s1", Width: 1, Height: 12, GridSize: 0,
			FogOfWar: true, FogData: [][]bool{{true}},
			Tokens: []core.Token{{ID: "t", HP: core.Ptr(50), MaxHP: core.Ptr(10)}},
		}},
		CurrentSceneID: &missing,
	})

	sc, ok := s.Scene("s1")
	require.True(t, ok)
	assert.Equal(t, core.MinDimension, sc.Width)
	assert.Equal(t, core.DefaultGridSize, sc.GridSize)
	assert.True(t, fog.Conforms(sc.FogData, 5, 12))
	assert.True(t, sc.FogData[0][0])
	assert.Equal(t, 10, *sc.Tokens[0].HP)
	assert.NotNil(t, sc.Drawings)
	assert.Empty(t, s.CurrentID(), "dangling current pointer dropped")
}
