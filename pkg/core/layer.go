package core

// Layer is one of the four fixed scene layers.
type Layer int

const (
	LayerMap Layer = iota
	LayerTokens
	LayerEffects
	LayerGM
)

// LayerCount is the number of fixed layers.
const LayerCount = 4

// Clamp bounds l to the known layers.
func (l Layer) Clamp() Layer {
	return Layer(clampInt(int(l), int(LayerMap), int(LayerGM)))
}

func (l Layer) String() string {
	switch l {
	case LayerMap:
		return "map"
	case LayerTokens:
		return "tokens"
	case LayerEffects:
		return "effects"
	case LayerGM:
		return "gm"
	}
	return "unknown"
}

// Layered is any scene object that sits on a layer.
type Layered interface {
	GetLayer() Layer
	IsVisible() bool
}
