// Package visibility decides which scene objects a viewer may see.
package visibility

import (
	"math"

	"github.com/tablekeep/vtt/internal/fog"
	"github.com/tablekeep/vtt/pkg/core"
)

// Toggles is a client's local per-layer focus. It is never shared.
type Toggles [core.LayerCount]bool

// AllLayers has every layer switched on.
func AllLayers() Toggles {
	return Toggles{true, true, true, true}
}

// Set switches one layer. Unknown layers are ignored.
func (t *Toggles) Set(l core.Layer, on bool) {
	if l < 0 || int(l) >= len(t) {
		return
	}
	t[l] = on
}

// On reports whether a layer is switched on. Out-of-range layers read as
// the GM layer.
func (t Toggles) On(l core.Layer) bool {
	return t[l.Clamp()]
}

// IsVisible applies the layer toggle, the GM-only layer policy and the
// object's own flag. The GM layer is never visible to a participant.
func IsVisible(obj core.Layered, role core.Role, toggles Toggles) bool {
	layer := obj.GetLayer().Clamp()
	if !toggles.On(layer) {
		return false
	}
	if layer == core.LayerGM && !role.IsGM() {
		return false
	}
	return role.IsGM() || obj.IsVisible()
}

// Projection is the scene as one viewer is allowed to render it.
type Projection struct {
	SceneID           string            `json:"sceneId"`
	Name              string            `json:"name"`
	Width             int               `json:"width"`
	Height            int               `json:"height"`
	GridSize          int               `json:"gridSize"`
	BackgroundImage   string            `json:"backgroundImage,omitempty"`
	BackgroundScale   float64           `json:"backgroundScale,omitempty"`
	BackgroundOffsetX float64           `json:"backgroundOffsetX,omitempty"`
	BackgroundOffsetY float64           `json:"backgroundOffsetY,omitempty"`
	Tokens            []core.Token      `json:"tokens"`
	Drawings          []core.Drawing    `json:"drawings"`
	Annotations       []core.Annotation `json:"annotations"`
	FogOfWar          bool              `json:"fogOfWar"`
	FogOpacity        [][]float64       `json:"fogOpacity,omitempty"`
}

// Project filters a scene for a viewer. With fog enabled, participants also
// lose tokens and notes anchored on hidden cells.
func Project(sc core.Scene, role core.Role, toggles Toggles) Projection {
	p := Projection{
		SceneID:           sc.ID,
		Name:              sc.Name,
		Width:             sc.Width,
		Height:            sc.Height,
		GridSize:          sc.GridSize,
		BackgroundImage:   sc.BackgroundImage,
		BackgroundScale:   sc.BackgroundScale,
		BackgroundOffsetX: sc.BackgroundOffsetX,
		BackgroundOffsetY: sc.BackgroundOffsetY,
		Tokens:            []core.Token{},
		Drawings:          []core.Drawing{},
		Annotations:       []core.Annotation{},
		FogOfWar:          sc.FogOfWar,
	}

	fogged := sc.FogOfWar && sc.FogData != nil
	grid := fog.Grid(sc.FogData)
	hiddenTo := func(x, y int) bool {
		return fogged && !role.IsGM() && !grid.Revealed(x, y)
	}

	for _, t := range sc.Tokens {
		if IsVisible(t, role, toggles) && !hiddenTo(t.X, t.Y) {
			p.Tokens = append(p.Tokens, t.Clone())
		}
	}
	for _, d := range sc.Drawings {
		if IsVisible(d, role, toggles) {
			p.Drawings = append(p.Drawings, d)
		}
	}
	for _, a := range sc.Annotations {
		ax, ay := int(math.Floor(a.X)), int(math.Floor(a.Y))
		if IsVisible(a, role, toggles) && !hiddenTo(ax, ay) {
			p.Annotations = append(p.Annotations, a)
		}
	}

	if fogged {
		p.FogOpacity = make([][]float64, sc.Height)
		for y := 0; y < sc.Height; y++ {
			row := make([]float64, sc.Width)
			for x := 0; x < sc.Width; x++ {
				row[x] = fog.CellOpacity(grid, x, y, role.IsGM())
			}
			p.FogOpacity[y] = row
		}
	}
	return p
}

// RevealedCells lists the cells a projection leaves unobscured.
func (p Projection) RevealedCells() [][2]int {
	var out [][2]int
	for y, row := range p.FogOpacity {
		for x, o := range row {
			if o == fog.OpacityRevealed {
				out = append(out, [2]int{x, y})
			}
		}
	}
	return out
}
