// Package viewmodel holds per-client ephemeral state: active tool, zoom,
// scroll, layer focus, selection, drag gesture and drawing draft. None of it
// is persisted or broadcast.
package viewmodel

import (
	"github.com/tablekeep/vtt/internal/fog"
	"github.com/tablekeep/vtt/internal/grid"
	"github.com/tablekeep/vtt/internal/measure"
	"github.com/tablekeep/vtt/internal/visibility"
	"github.com/tablekeep/vtt/pkg/core"
)

// Tool is the active pointer tool.
type Tool string

const (
	ToolSelect   Tool = "select"
	ToolDraw     Tool = "draw"
	ToolErase    Tool = "erase"
	ToolFog      Tool = "fog"
	ToolAnnotate Tool = "annotate"
	ToolMeasure  Tool = "measure"
)

// Zoom bounds.
const (
	MinZoom     = 0.25
	MaxZoom     = 4.0
	DefaultZoom = 1.0
)

// Drag is an in-progress token drag.
type Drag struct {
	SceneID string
	TokenID string
	OriginX int
	OriginY int
	X       int
	Y       int
	Moved   bool
}

// Draft is a drawing being sketched.
type Draft struct {
	SceneID string
	Drawing core.Drawing
}

// Model is one client's local view state.
type Model struct {
	Tool        Tool
	DrawType    core.DrawingType
	StrokeColor string
	StrokeWidth float64
	DrawLayer   core.Layer
	BrushRadius int
	BrushMode   fog.Mode
	Zoom        float64
	ScrollX     float64
	ScrollY     float64
	Layers      visibility.Toggles
	Measure     measure.Tool

	selected string
	drag     *Drag
	draft    *Draft
}

// New returns a model with every layer shown and the select tool active.
func New() *Model {
	return &Model{
		Tool:        ToolSelect,
		DrawType:    core.DrawLine,
		StrokeWidth: 3,
		DrawLayer:   core.LayerEffects,
		BrushRadius: 1,
		Zoom:        DefaultZoom,
		Layers:      visibility.AllLayers(),
	}
}

// SetTool switches tools. Leaving a tool abandons its pending gesture.
func (m *Model) SetTool(t Tool) {
	if m.Tool == t {
		return
	}
	m.draft = nil
	m.Measure.Reset()
	m.Tool = t
}

// SetZoom clamps and stores the zoom factor.
func (m *Model) SetZoom(z float64) {
	if z < MinZoom || z != z {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	m.Zoom = z
}

// SetBrushRadius stores a clamped fog brush radius.
func (m *Model) SetBrushRadius(r int) {
	m.BrushRadius = fog.ClampRadius(r)
}

// Mapper returns the pixel/cell mapper for a scene at the current zoom.
func (m *Model) Mapper(gridSize int) grid.Mapper {
	return grid.New(gridSize, m.Zoom)
}

// Selected returns the selected token id, or empty.
func (m *Model) Selected() string { return m.selected }

// Select marks a token as selected.
func (m *Model) Select(tokenID string) { m.selected = tokenID }

// ClearSelectionIf clears the selection when it points at tokenID.
func (m *Model) ClearSelectionIf(tokenID string) {
	if m.selected == tokenID {
		m.selected = ""
	}
}

// Drag returns the active drag, if any.
func (m *Model) Drag() (Drag, bool) {
	if m.drag == nil {
		return Drag{}, false
	}
	return *m.drag, true
}

// BeginDrag starts a drag from the token's current cell.
func (m *Model) BeginDrag(sceneID string, t core.Token) {
	m.drag = &Drag{SceneID: sceneID, TokenID: t.ID, OriginX: t.X, OriginY: t.Y, X: t.X, Y: t.Y}
	m.selected = t.ID
}

// MoveDrag records the latest drag cell. Moved stays set once the token
// left its origin.
func (m *Model) MoveDrag(x, y int) {
	if m.drag == nil {
		return
	}
	m.drag.X, m.drag.Y = x, y
	if x != m.drag.OriginX || y != m.drag.OriginY {
		m.drag.Moved = true
	}
}

// CancelDrag drops the drag without committing.
func (m *Model) CancelDrag() { m.drag = nil }

// EndDrag clears the drag and returns it.
func (m *Model) EndDrag() (Drag, bool) {
	d, ok := m.Drag()
	m.drag = nil
	return d, ok
}

// Draft returns the drawing being sketched, if any.
func (m *Model) Draft() (Draft, bool) {
	if m.draft == nil {
		return Draft{}, false
	}
	return *m.draft, true
}

// StartDraft seeds a primitive at the start cell with both corners equal.
func (m *Model) StartDraft(sceneID string, x, y float64) Draft {
	m.draft = &Draft{
		SceneID: sceneID,
		Drawing: core.Drawing{
			Type:  m.DrawType,
			Color: m.StrokeColor,
			Width: m.StrokeWidth,
			Layer: m.DrawLayer,
			X1:    x,
			Y1:    y,
			X2:    x,
			Y2:    y,
		},
	}
	return *m.draft
}

// ExtendDraft moves the second corner of the draft.
func (m *Model) ExtendDraft(x, y float64) bool {
	if m.draft == nil {
		return false
	}
	m.draft.Drawing.X2, m.draft.Drawing.Y2 = x, y
	return true
}

// TakeDraft clears the draft and returns it for commit.
func (m *Model) TakeDraft() (Draft, bool) {
	d, ok := m.Draft()
	m.draft = nil
	return d, ok
}

// CancelDraft drops the draft without committing.
func (m *Model) CancelDraft() { m.draft = nil }
