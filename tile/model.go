package tile

import "github.com/go-gl/mathgl/mgl32"

// ColorLayerKind discriminates the color layer variants a fetch can return.
type ColorLayerKind int

const (
	// ColorLayerImage carries a texture to sample.
	ColorLayerImage ColorLayerKind = iota

	// ColorLayerOther reserves a pass for a non-image color layer (e.g. a
	// procedural splatting layer) without providing a texture.
	ColorLayerOther
)

// ColorLayer is one color layer's payload in a fetched tile model.
type ColorLayer struct {
	Layer   LayerID
	Kind    ColorLayerKind
	Texture *Texture
	Matrix  mgl32.Mat4
}

// ElevationLayer carries a fetched elevation raster.
type ElevationLayer struct {
	Texture *Texture
}

// NormalLayer carries a fetched normal map.
type NormalLayer struct {
	Texture *Texture
}

// SharedLayer carries a texture destined for a custom shared binding.
type SharedLayer struct {
	Layer   LayerID
	Texture *Texture
}

// Model is the typed result of an asynchronous tile data fetch. Layers
// absent from the model keep whatever the tile currently displays.
type Model struct {
	Key Key

	ColorLayers []ColorLayer
	Elevation   *ElevationLayer
	Normal      *NormalLayer
	Shared      []SharedLayer
}

// Empty reports whether the fetch produced no data at all, which encodes a
// fetch failure: the tile stays dirty and retries later.
func (m *Model) Empty() bool {
	return m == nil ||
		(len(m.ColorLayers) == 0 && m.Elevation == nil && m.Normal == nil && len(m.Shared) == 0)
}

// LayerSet restricts a load request to a subset of layers.
type LayerSet map[LayerID]struct{}

func NewLayerSet(layers ...LayerID) LayerSet {
	s := make(LayerSet, len(layers))
	for _, l := range layers {
		s[l] = struct{}{}
	}
	return s
}

func (s LayerSet) Add(layer LayerID) {
	s[layer] = struct{}{}
}

// Contains reports whether the layer passes the filter. A nil set filters
// nothing.
func (s LayerSet) Contains(layer LayerID) bool {
	if s == nil {
		return true
	}
	_, ok := s[layer]
	return ok
}
