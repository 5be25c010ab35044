package core

// DrawingType tags the geometry of a Drawing.
type DrawingType string

const (
	DrawLine   DrawingType = "line"
	DrawRect   DrawingType = "rect"
	DrawCircle DrawingType = "circle"
)

// Valid reports whether t is one of the known primitives.
func (t DrawingType) Valid() bool {
	switch t {
	case DrawLine, DrawRect, DrawCircle:
		return true
	}
	return false
}

// Filled reports whether the primitive carries an area fill.
func (t DrawingType) Filled() bool {
	return t == DrawRect || t == DrawCircle
}

// Drawing is a freeform vector primitive. Coordinates are in grid cells and
// may be fractional.
type Drawing struct {
	ID    string      `json:"id"`
	Type  DrawingType `json:"type"`
	Color string      `json:"color"`
	Width float64     `json:"width"`
	Fill  string      `json:"fill,omitempty"`
	X1    float64     `json:"x1"`
	Y1    float64     `json:"y1"`
	X2    float64     `json:"x2"`
	Y2    float64     `json:"y2"`
	Layer Layer       `json:"layer"`
}

func (d Drawing) GetLayer() Layer { return d.Layer }
func (d Drawing) IsVisible() bool { return true }

// Annotation is a positioned text note.
type Annotation struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Layer Layer   `json:"layer"`
}

func (a Annotation) GetLayer() Layer { return a.Layer }
func (a Annotation) IsVisible() bool { return true }

// TintFill derives the semi-transparent fill for a stroke color. Six digit
// hex colors get a 0x33 alpha suffix; anything else is returned unchanged.
func TintFill(color string) string {
	if len(color) == 7 && color[0] == '#' {
		return color + "33"
	}
	return color
}
