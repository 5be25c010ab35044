// pkg/core/scene.go
package core

// Scene dimension limits. Out-of-range input is clamped, never rejected.
const (
	MinDimension    = 5
	MaxDimension    = 100
	DefaultGridSize = 50
	MinGridSize     = 20
	MaxGridSize     = 120
)

// Scene is one map/encounter context.
type Scene struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Width             int          `json:"width"`
	Height            int          `json:"height"`
	GridSize          int          `json:"gridSize"`
	BackgroundImage   string       `json:"backgroundImage,omitempty"`
	BackgroundScale   float64      `json:"backgroundScale,omitempty"`
	BackgroundOffsetX float64      `json:"backgroundOffsetX,omitempty"`
	BackgroundOffsetY float64      `json:"backgroundOffsetY,omitempty"`
	Tokens            []Token      `json:"tokens"`
	Drawings          []Drawing    `json:"drawings"`
	Annotations       []Annotation `json:"annotations"`
	FogOfWar          bool         `json:"fogOfWar"`
	FogData           [][]bool     `json:"fogData,omitempty"`
}

// Token returns the token with the given id, or nil.
func (s *Scene) Token(id string) *Token {
	for i := range s.Tokens {
		if s.Tokens[i].ID == id {
			return &s.Tokens[i]
		}
	}
	return nil
}

// Clone returns a deep copy so snapshots never alias live slices.
func (s Scene) Clone() Scene {
	out := s
	out.Tokens = make([]Token, len(s.Tokens))
	for i, t := range s.Tokens {
		out.Tokens[i] = t.Clone()
	}
	out.Drawings = append([]Drawing(nil), s.Drawings...)
	if out.Drawings == nil {
		out.Drawings = []Drawing{}
	}
	out.Annotations = append([]Annotation(nil), s.Annotations...)
	if out.Annotations == nil {
		out.Annotations = []Annotation{}
	}
	if s.FogData != nil {
		out.FogData = make([][]bool, len(s.FogData))
		for y, row := range s.FogData {
			out.FogData[y] = append([]bool(nil), row...)
		}
	}
	return out
}

// ClampDimension bounds a width or height to [MinDimension, MaxDimension].
func ClampDimension(v int) int {
	return clampInt(v, MinDimension, MaxDimension)
}

// ClampGridSize bounds a cell size to [MinGridSize, MaxGridSize]. Zero maps
// to the default.
func ClampGridSize(v int) int {
	if v == 0 {
		return DefaultGridSize
	}
	return clampInt(v, MinGridSize, MaxGridSize)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
