package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/pkg/core"
)

func TestAddDrawing_Fill(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)

	rect, ok := s.AddDrawing(a.ID, core.Drawing{Type: core.DrawRect, Color: "#00ff00", X1: 1, Y1: 1, X2: 3, Y2: 3})
	require.True(t, ok)
	assert.Equal(t, "#00ff0033", rect.Fill)

	line, ok := s.AddDrawing(a.ID, core.Drawing{Type: core.DrawLine, Fill: "#ffffff", X2: 4})
	require.True(t, ok)
	assert.Empty(t, line.Fill)
	assert.Equal(t, DefaultStrokeColor, line.Color)
	assert.Equal(t, float64(DefaultStrokeWidth), line.Width)

	_, ok = s.AddDrawing(a.ID, core.Drawing{Type: "polygon"})
	assert.False(t, ok)
	_, ok = s.AddDrawing("missing", core.Drawing{Type: core.DrawLine})
	assert.False(t, ok)

	sc, _ := s.Scene(a.ID)
	assert.Len(t, sc.Drawings, 2)
}

func TestEraseDrawingAt_TopMostFirst(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)
	under, _ := s.AddDrawing(a.ID, core.Drawing{Type: core.DrawRect, X1: 0, Y1: 0, X2: 5, Y2: 5})
	over, _ := s.AddDrawing(a.ID, core.Drawing{Type: core.DrawCircle, X1: 2, Y1: 2, X2: 3, Y2: 2})

	require.True(t, s.EraseDrawingAt(a.ID, 2, 2))
	sc, _ := s.Scene(a.ID)
	require.Len(t, sc.Drawings, 1)
	assert.Equal(t, under.ID, sc.Drawings[0].ID)
	assert.NotEqual(t, over.ID, sc.Drawings[0].ID)

	assert.False(t, s.EraseDrawingAt(a.ID, 9, 9))
}

func TestClearAndRemoveDrawings(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)
	d, _ := s.AddDrawing(a.ID, core.Drawing{Type: core.DrawLine})
	s.AddDrawing(a.ID, core.Drawing{Type: core.DrawLine})

	assert.True(t, s.RemoveDrawing(a.ID, d.ID))
	assert.False(t, s.RemoveDrawing(a.ID, d.ID))
	assert.True(t, s.ClearDrawings(a.ID))
	assert.False(t, s.ClearDrawings(a.ID))
	sc, _ := s.Scene(a.ID)
	assert.Empty(t, sc.Drawings)
}

func TestAnnotations(t *testing.T) {
	s := newTestStore()
	a := s.CreateScene("A", 10, 10)

	_, ok := s.AddAnnotation(a.ID, core.Annotation{Text: "   "})
	assert.False(t, ok)

	note, ok := s.AddAnnotation(a.ID, core.Annotation{Text: " Secret door ", X: 3, Y: 4, Layer: core.LayerGM})
	require.True(t, ok)
	assert.Equal(t, "Secret door", note.Text)

	assert.True(t, s.RemoveAnnotation(a.ID, note.ID))
	assert.False(t, s.RemoveAnnotation(a.ID, note.ID))
}
