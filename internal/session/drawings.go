package session

import (
	"github.com/tablekeep/vtt/internal/geo"
	"github.com/tablekeep/vtt/internal/scene"
	"github.com/tablekeep/vtt/pkg/core"
)

// StartDrawing opens a draft at a cell of the current scene. The draft is
// local until CommitDrawing.
func (s *Session) StartDrawing(x, y float64) bool {
	if !s.allow("draw") {
		return false
	}
	id, ok := s.currentID()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.StartDraft(id, x, y)
	return true
}

// ExtendDrawing moves the draft's second corner.
func (s *Session) ExtendDrawing(x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.ExtendDraft(x, y)
}

// Draft returns the drawing being sketched with defaults applied, for an
// overlay.
func (s *Session) Draft() (core.Drawing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.view.Draft()
	if !ok {
		return core.Drawing{}, false
	}
	return scene.PrepareDrawing(d.Drawing), true
}

// CommitDrawing adds the draft to its scene and clears it.
func (s *Session) CommitDrawing() (core.Drawing, bool) {
	s.mu.Lock()
	d, ok := s.view.TakeDraft()
	s.mu.Unlock()
	if !ok || !s.allow("draw") {
		return core.Drawing{}, false
	}
	committed, ok := s.store.AddDrawing(d.SceneID, d.Drawing)
	return committed, s.changed(ok)
}

// CancelDrawing drops the draft.
func (s *Session) CancelDrawing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.CancelDraft()
}

// EraseAt removes the top-most drawing under a cell position of the current
// scene.
func (s *Session) EraseAt(x, y float64) bool {
	if !s.allow("erase") {
		return false
	}
	id, ok := s.currentID()
	return ok && s.changed(s.store.EraseDrawingAt(id, x, y))
}

// RemoveDrawing deletes a drawing of the current scene.
func (s *Session) RemoveDrawing(drawingID string) bool {
	if !s.allow("remove_drawing") {
		return false
	}
	id, ok := s.currentID()
	return ok && s.changed(s.store.RemoveDrawing(id, drawingID))
}

// ClearDrawings removes every drawing of the current scene.
func (s *Session) ClearDrawings() bool {
	if !s.allow("clear_drawings") {
		return false
	}
	id, ok := s.currentID()
	return ok && s.changed(s.store.ClearDrawings(id))
}

// AddAnnotation places a text note on the current scene.
func (s *Session) AddAnnotation(text string, x, y float64) (core.Annotation, bool) {
	if !s.allow("annotate") {
		return core.Annotation{}, false
	}
	id, ok := s.currentID()
	if !ok {
		return core.Annotation{}, false
	}
	s.mu.Lock()
	layer := s.view.DrawLayer
	s.mu.Unlock()
	a, ok := s.store.AddAnnotation(id, core.Annotation{Text: text, X: x, Y: y, Layer: layer})
	return a, s.changed(ok)
}

// RemoveAnnotation deletes a note of the current scene.
func (s *Session) RemoveAnnotation(annotationID string) bool {
	if !s.allow("remove_annotation") {
		return false
	}
	id, ok := s.currentID()
	return ok && s.changed(s.store.RemoveAnnotation(id, annotationID))
}

// LineLength is the length of a drawing in cells.
func LineLength(d core.Drawing) float64 {
	return geo.Length(d)
}
