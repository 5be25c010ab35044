// Package grid converts between viewport pixels and scene cells.
package grid

import "math"

// Mapper holds the scale of one cell on screen.
type Mapper struct {
	GridSize float64
	Zoom     float64
}

// New returns a mapper for the given cell size and zoom factor.
func New(gridSize int, zoom float64) Mapper {
	return Mapper{GridSize: float64(gridSize), Zoom: zoom}
}

func (m Mapper) scale() float64 {
	s := m.GridSize * m.Zoom
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// ToCell maps a pointer position plus scroll offset to a cell. A degenerate
// scale saturates to cell (0,0).
func (m Mapper) ToCell(pointerX, pointerY, scrollX, scrollY float64) (int, int) {
	return m.Cell(pointerX + scrollX), m.Cell(pointerY + scrollY)
}

// Cell maps one local pixel coordinate to a cell index.
func (m Mapper) Cell(local float64) int {
	s := m.scale()
	if s == 0 || math.IsNaN(local) || math.IsInf(local, 0) {
		return 0
	}
	return int(math.Floor(local / s))
}

// FractionalCell is Cell without flooring, used while drafting drawings.
func (m Mapper) FractionalCell(local float64) float64 {
	s := m.scale()
	if s == 0 || math.IsNaN(local) || math.IsInf(local, 0) {
		return 0
	}
	return local / s
}

// Center returns the pixel coordinate of a cell's center.
func (m Mapper) Center(cell int) float64 {
	return (float64(cell) + 0.5) * m.scale()
}

// CenterXY returns the pixel center of cell (x, y).
func (m Mapper) CenterXY(x, y int) (float64, float64) {
	return m.Center(x), m.Center(y)
}
