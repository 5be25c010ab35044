package fog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	g := Initialize(4, 3, true)
	require.Equal(t, 3, g.Height())
	require.Equal(t, 4, g.Width())
	assert.Equal(t, 12, RevealedCount(g))

	g = Initialize(4, 3, false)
	assert.Equal(t, 0, RevealedCount(g))
	assert.True(t, Conforms(g, 4, 3))
}

func TestApplyBrush_Square(t *testing.T) {
	g := Initialize(20, 20, false)
	changed := ApplyBrush(g, 5, 5, 1, Reveal)
	assert.Equal(t, 9, changed)
	assert.Equal(t, 9, RevealedCount(g))
	for y := 4; y <= 6; y++ {
		for x := 4; x <= 6; x++ {
			assert.True(t, g.Revealed(x, y), "cell %d,%d", x, y)
		}
	}
	assert.False(t, g.Revealed(7, 5))
}

func TestApplyBrush_Idempotent(t *testing.T) {
	once := Initialize(10, 10, false)
	ApplyBrush(once, 3, 3, 2, Reveal)

	twice := Initialize(10, 10, false)
	ApplyBrush(twice, 3, 3, 2, Reveal)
	changed := ApplyBrush(twice, 3, 3, 2, Reveal)

	assert.Equal(t, once, twice)
	assert.Zero(t, changed)
}

func TestApplyBrush_ClipsAndClamps(t *testing.T) {
	g := Initialize(10, 10, false)
	ApplyBrush(g, 0, 0, 1, Reveal)
	assert.Equal(t, 4, RevealedCount(g))

	g = Initialize(20, 20, false)
	ApplyBrush(g, 10, 10, 99, Reveal)
	assert.Equal(t, 81, RevealedCount(g))

	g = Initialize(20, 20, false)
	ApplyBrush(g, 10, 10, -2, Reveal)
	assert.Equal(t, 1, RevealedCount(g))

	g = Initialize(5, 5, false)
	assert.Zero(t, ApplyBrush(g, 50, 50, 4, Reveal))
}

func TestApplyBrush_Hide(t *testing.T) {
	g := Initialize(10, 10, true)
	ApplyBrush(g, 5, 5, 0, Hide)
	assert.False(t, g.Revealed(5, 5))
	assert.Equal(t, 99, RevealedCount(g))
}

func TestResize_PreservesOverlap(t *testing.T) {
	g := Initialize(20, 20, false)
	g[2][2] = true

	out := Resize(g, 30, 15)
	require.True(t, Conforms(out, 30, 15))
	assert.True(t, out.Revealed(2, 2))
	for y := 0; y < 15; y++ {
		for x := 15; x < 30; x++ {
			assert.False(t, out.Revealed(x, y))
		}
	}
}

func TestResize_NewCellsHidden(t *testing.T) {
	g := Initialize(5, 5, true)
	out := Resize(g, 8, 7)
	assert.Equal(t, 25, RevealedCount(out))
	assert.False(t, out.Revealed(5, 0))
	assert.False(t, out.Revealed(0, 5))

	shrunk := Resize(g, 3, 3)
	assert.Equal(t, 9, RevealedCount(shrunk))
}

func TestFill(t *testing.T) {
	g := Initialize(6, 6, false)
	Fill(g, true)
	assert.Equal(t, 36, RevealedCount(g))
}

func TestCellOpacity(t *testing.T) {
	g := Initialize(3, 3, false)
	g[1][1] = true
	assert.Equal(t, OpacityRevealed, CellOpacity(g, 1, 1, false))
	assert.Equal(t, OpacityHiddenGM, CellOpacity(g, 0, 0, true))
	assert.Equal(t, OpacityHiddenPlayer, CellOpacity(g, 0, 0, false))
}
