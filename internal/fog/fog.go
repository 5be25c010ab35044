// Package fog implements the fog-of-war grid. Grids are [height][width]
// booleans where true means revealed.
package fog

// MaxBrushRadius bounds the brush half-width.
const MaxBrushRadius = 4

// Mode selects what a brush stroke writes.
type Mode int

const (
	Reveal Mode = iota
	Hide
)

func (m Mode) String() string {
	if m == Hide {
		return "hide"
	}
	return "reveal"
}

// Grid is a fog-of-war visibility grid.
type Grid [][]bool

// Initialize builds a width x height grid filled with revealed.
func Initialize(width, height int, revealed bool) Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	g := make(Grid, height)
	for y := range g {
		row := make([]bool, width)
		if revealed {
			for x := range row {
				row[x] = true
			}
		}
		g[y] = row
	}
	return g
}

// Width is the row length; zero for an empty grid.
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height is the row count.
func (g Grid) Height() int { return len(g) }

// InBounds reports whether (x, y) is a cell of g.
func (g Grid) InBounds(x, y int) bool {
	return y >= 0 && y < len(g) && x >= 0 && x < len(g[y])
}

// Revealed reports whether (x, y) is revealed. Out-of-bounds cells are hidden.
func (g Grid) Revealed(x, y int) bool {
	return g.InBounds(x, y) && g[y][x]
}

// ClampRadius bounds r to [0, MaxBrushRadius].
func ClampRadius(r int) int {
	if r < 0 {
		return 0
	}
	if r > MaxBrushRadius {
		return MaxBrushRadius
	}
	return r
}

// ApplyBrush overwrites the (2r+1)-wide square around (cx, cy), clipped to
// the grid. Applying the same brush twice is the same as applying it once.
// It returns the number of cells that changed.
func ApplyBrush(g Grid, cx, cy, radius int, mode Mode) int {
	r := ClampRadius(radius)
	value := mode == Reveal
	changed := 0
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if !g.InBounds(x, y) {
				continue
			}
			if g[y][x] != value {
				g[y][x] = value
				changed++
			}
		}
	}
	return changed
}

// Fill overwrites every cell.
func Fill(g Grid, revealed bool) {
	for y := range g {
		for x := range g[y] {
			g[y][x] = revealed
		}
	}
}

// Resize returns a fresh hidden grid with the overlapping region of g copied.
func Resize(g Grid, width, height int) Grid {
	out := Initialize(width, height, false)
	for y := 0; y < len(out) && y < len(g); y++ {
		copy(out[y], g[y])
	}
	return out
}

// Conforms reports whether g has exactly the given dimensions.
func Conforms(g Grid, width, height int) bool {
	if len(g) != height {
		return false
	}
	for _, row := range g {
		if len(row) != width {
			return false
		}
	}
	return true
}

// RevealedCount counts revealed cells.
func RevealedCount(g Grid) int {
	n := 0
	for _, row := range g {
		for _, v := range row {
			if v {
				n++
			}
		}
	}
	return n
}

// Opacity levels for hidden cells. The grid is the same for every viewer; only
// how hidden cells are drawn differs.
const (
	OpacityRevealed     = 0.0
	OpacityHiddenGM     = 0.5
	OpacityHiddenPlayer = 1.0
)

// CellOpacity returns the overlay opacity for a cell as seen by a viewer.
func CellOpacity(g Grid, x, y int, gm bool) float64 {
	if g.Revealed(x, y) {
		return OpacityRevealed
	}
	if gm {
		return OpacityHiddenGM
	}
	return OpacityHiddenPlayer
}
