package session

import (
	"github.com/tablekeep/vtt/internal/fog"
	"github.com/tablekeep/vtt/internal/grid"
	"github.com/tablekeep/vtt/internal/measure"
	"github.com/tablekeep/vtt/internal/viewmodel"
	"github.com/tablekeep/vtt/internal/visibility"
	"github.com/tablekeep/vtt/pkg/core"
)

// View projects the current scene for this viewer. It is empty without a
// current scene.
func (s *Session) View() visibility.Projection {
	sc, ok := s.store.Current()
	if !ok {
		return visibility.Projection{}
	}
	s.mu.Lock()
	toggles := s.view.Layers
	s.mu.Unlock()
	return visibility.Project(sc, s.gate.Role(), toggles)
}

// FogOpacity is the rendered opacity of one cell of the current scene.
func (s *Session) FogOpacity(x, y int) float64 {
	sc, ok := s.store.Current()
	if !ok || !sc.FogOfWar {
		return fog.OpacityRevealed
	}
	return fog.CellOpacity(sc.FogData, x, y, s.gate.Role().IsGM())
}

// SetLayerVisible switches one layer of the local focus.
func (s *Session) SetLayerVisible(l core.Layer, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Layers.Set(l, on)
}

// SetTool switches the local tool.
func (s *Session) SetTool(t viewmodel.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SetTool(t)
}

// SetDrawStyle sets the primitive, stroke and layer of new drawings.
func (s *Session) SetDrawStyle(kind core.DrawingType, color string, width float64, layer core.Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.DrawType = kind
	s.view.StrokeColor = color
	s.view.StrokeWidth = width
	s.view.DrawLayer = layer.Clamp()
}

// SetZoom sets the local zoom factor.
func (s *Session) SetZoom(z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SetZoom(z)
}

// SetScroll sets the local viewport offset in pixels.
func (s *Session) SetScroll(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.ScrollX, s.view.ScrollY = x, y
}

// CellAt maps a pointer position to a cell of the current scene.
func (s *Session) CellAt(pointerX, pointerY float64) (int, int) {
	sx, sy := s.scroll()
	return s.mapper().ToCell(pointerX, pointerY, sx, sy)
}

func (s *Session) mapper() grid.Mapper {
	size := core.DefaultGridSize
	if sc, ok := s.store.Current(); ok {
		size = sc.GridSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Mapper(size)
}

func (s *Session) scroll() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.ScrollX, s.view.ScrollY
}

// MeasureClick feeds the local measurement tool. The second click returns
// the result. Every role may measure.
func (s *Session) MeasureClick(x, y int) (measure.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Measure.Click(measure.Point{X: x, Y: y})
}

// MeasurePhase is the state of the measurement tool.
func (s *Session) MeasurePhase() measure.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Measure.Phase()
}
