// Package geo measures and hit-tests drawings with simplefeatures geometry.
package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/tablekeep/vtt/pkg/core"
)

// circleSegments is how many edges approximate a circle outline.
const circleSegments = 32

// Outline returns the stroke path of a drawing in grid-cell space.
// Rectangles are closed rings through the two corners; circles are centered
// on (x1,y1) and pass through (x2,y2).
func Outline(d core.Drawing) geom.LineString {
	var flat []float64
	switch d.Type {
	case core.DrawRect:
		flat = []float64{
			d.X1, d.Y1,
			d.X2, d.Y1,
			d.X2, d.Y2,
			d.X1, d.Y2,
			d.X1, d.Y1,
		}
	case core.DrawCircle:
		r := Radius(d)
		flat = make([]float64, 0, (circleSegments+1)*2)
		for i := 0; i <= circleSegments; i++ {
			a := 2 * math.Pi * float64(i) / circleSegments
			flat = append(flat, d.X1+r*math.Cos(a), d.Y1+r*math.Sin(a))
		}
	default:
		flat = []float64{d.X1, d.Y1, d.X2, d.Y2}
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// Radius is the circle radius for a circle drawing.
func Radius(d core.Drawing) float64 {
	return math.Hypot(d.X2-d.X1, d.Y2-d.Y1)
}

// Length is the stroke length in cells. Lines give the ruler distance.
func Length(d core.Drawing) float64 {
	if d.Type == core.DrawCircle {
		return 2 * math.Pi * Radius(d)
	}
	return Outline(d).Length()
}

func point(x, y float64) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.DimXY,
	})
}

// Distance is the distance from (x, y) to the stroke of d.
func Distance(d core.Drawing, x, y float64) float64 {
	dist, ok := geom.Distance(Outline(d).AsGeometry(), point(x, y).AsGeometry())
	if !ok {
		return math.Inf(1)
	}
	return dist
}

// Hit reports whether (x, y) touches d within tolerance cells. Filled
// shapes are also hit anywhere inside their area.
func Hit(d core.Drawing, x, y, tolerance float64) bool {
	switch d.Type {
	case core.DrawRect:
		minX, maxX := math.Min(d.X1, d.X2), math.Max(d.X1, d.X2)
		minY, maxY := math.Min(d.Y1, d.Y2), math.Max(d.Y1, d.Y2)
		if x >= minX && x <= maxX && y >= minY && y <= maxY {
			return true
		}
	case core.DrawCircle:
		if math.Hypot(x-d.X1, y-d.Y1) <= Radius(d) {
			return true
		}
	}
	return Distance(d, x, y) <= tolerance
}
