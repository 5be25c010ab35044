package scene

import (
	"slices"
	"strings"

	"github.com/tablekeep/vtt/internal/geo"
	"github.com/tablekeep/vtt/pkg/core"
)

// Drawing defaults.
const (
	DefaultStrokeColor = "#e11d48"
	DefaultStrokeWidth = 3
	eraseTolerance     = 0.5
)

// PrepareDrawing fills defaults on a primitive: stroke, width, layer, and
// the tinted fill for rect and circle. Lines never carry a fill.
func PrepareDrawing(d core.Drawing) core.Drawing {
	if d.Color == "" {
		d.Color = DefaultStrokeColor
	}
	if d.Width <= 0 {
		d.Width = DefaultStrokeWidth
	}
	d.Layer = d.Layer.Clamp()
	if d.Type.Filled() {
		d.Fill = core.TintFill(d.Color)
	} else {
		d.Fill = ""
	}
	return d
}

// AddDrawing commits a primitive to a scene. Unknown primitive types are
// rejected.
func (s *Store) AddDrawing(sceneID string, d core.Drawing) (core.Drawing, bool) {
	if !d.Type.Valid() {
		return core.Drawing{}, false
	}
	d = PrepareDrawing(d)
	if d.ID == "" {
		d.ID = s.newID()
	}
	ok := s.mutate(sceneID, func(sc *core.Scene) bool {
		sc.Drawings = append(sc.Drawings, d)
		return true
	})
	return d, ok
}

// RemoveDrawing deletes one drawing.
func (s *Store) RemoveDrawing(sceneID, drawingID string) bool {
	return s.mutate(sceneID, func(sc *core.Scene) bool {
		n := len(sc.Drawings)
		sc.Drawings = slices.DeleteFunc(sc.Drawings, func(d core.Drawing) bool { return d.ID == drawingID })
		return len(sc.Drawings) != n
	})
}

// EraseDrawingAt removes the most recently drawn primitive under (x, y).
func (s *Store) EraseDrawingAt(sceneID string, x, y float64) bool {
	return s.mutate(sceneID, func(sc *core.Scene) bool {
		for i := len(sc.Drawings) - 1; i >= 0; i-- {
			if geo.Hit(sc.Drawings[i], x, y, eraseTolerance) {
				sc.Drawings = slices.Delete(sc.Drawings, i, i+1)
				return true
			}
		}
		return false
	})
}

// ClearDrawings removes every drawing from a scene.
func (s *Store) ClearDrawings(sceneID string) bool {
	return s.mutate(sceneID, func(sc *core.Scene) bool {
		if len(sc.Drawings) == 0 {
			return false
		}
		sc.Drawings = []core.Drawing{}
		return true
	})
}

// AddAnnotation places a text note. Blank text is rejected.
func (s *Store) AddAnnotation(sceneID string, a core.Annotation) (core.Annotation, bool) {
	a.Text = strings.TrimSpace(a.Text)
	if a.Text == "" {
		return core.Annotation{}, false
	}
	if a.ID == "" {
		a.ID = s.newID()
	}
	a.Layer = a.Layer.Clamp()
	ok := s.mutate(sceneID, func(sc *core.Scene) bool {
		sc.Annotations = append(sc.Annotations, a)
		return true
	})
	return a, ok
}

// RemoveAnnotation deletes one note.
func (s *Store) RemoveAnnotation(sceneID, annotationID string) bool {
	return s.mutate(sceneID, func(sc *core.Scene) bool {
		n := len(sc.Annotations)
		sc.Annotations = slices.DeleteFunc(sc.Annotations, func(a core.Annotation) bool { return a.ID == annotationID })
		return len(sc.Annotations) != n
	})
}
