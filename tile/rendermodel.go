package tile

// LayerID identifies a map layer contributing data to tiles.
type LayerID uint32

// Indices of the fixed shared sampler slots. Custom shared bindings follow.
const (
	SharedElevation = 0
	SharedNormal    = 1

	numFixedShared = 2
)

// SharedBinding declares a custom globally-bound sampler channel tied to a
// layer, e.g. a land-cover or splatting raster.
type SharedBinding struct {
	Name  string
	Layer LayerID
}

// Bindings describes which sampler channels the renderer binds, beyond the
// per-pass color channel that is always active.
type Bindings struct {
	// ColorParent enables the parent-color channel used for LOD
	// cross-fading.
	ColorParent bool

	Shared []SharedBinding
}

func (b Bindings) NumShared() int {
	return numFixedShared + len(b.Shared)
}

// SharedIndex returns the shared sampler slot bound to the given layer.
func (b Bindings) SharedIndex(layer LayerID) (int, bool) {
	for i, sb := range b.Shared {
		if sb.Layer == layer {
			return numFixedShared + i, true
		}
	}
	return 0, false
}

// RenderingPass is one layer's contribution to a tile's rendering.
type RenderingPass struct {
	Layer LayerID

	Color Sampler

	// ColorParent carries the parent tile's color for cross-fading. It is
	// only populated when Bindings.ColorParent is active.
	ColorParent Sampler
}

func newRenderingPass(layer LayerID) RenderingPass {
	return RenderingPass{
		Layer:       layer,
		Color:       NewSampler(),
		ColorParent: NewSampler(),
	}
}

func (p *RenderingPass) release() {
	p.Color.Clear()
	p.ColorParent.Clear()
}

// RenderModel holds everything needed to render one tile: the rendering
// passes in layer stacking order plus the shared samplers (elevation,
// normal map and custom shared channels).
type RenderModel struct {
	Passes []RenderingPass
	Shared []Sampler
}

func NewRenderModel(bindings Bindings) *RenderModel {
	shared := make([]Sampler, bindings.NumShared())
	for i := range shared {
		shared[i] = NewSampler()
	}
	return &RenderModel{Shared: shared}
}

// Pass returns the rendering pass owned by the given layer.
func (m *RenderModel) Pass(layer LayerID) *RenderingPass {
	for i := range m.Passes {
		if m.Passes[i].Layer == layer {
			return &m.Passes[i]
		}
	}
	return nil
}

// AddPass appends a new pass for the given layer and returns it. Insertion
// order is the layer stacking order.
func (m *RenderModel) AddPass(layer LayerID) *RenderingPass {
	m.Passes = append(m.Passes, newRenderingPass(layer))
	return &m.Passes[len(m.Passes)-1]
}

func (m *RenderModel) Elevation() *Sampler {
	return &m.Shared[SharedElevation]
}

func (m *RenderModel) Normal() *Sampler {
	return &m.Shared[SharedNormal]
}

// InheritFrom initializes this model by copying the parent's passes and
// shared samplers, rescaling every matrix into the given quadrant so the
// tile has something to draw before its own data arrives. When the
// parent-color binding is active it is seeded with the inherited color.
func (m *RenderModel) InheritFrom(parent *RenderModel, q Quadrant, bindings Bindings) {
	for i := range parent.Passes {
		parentPass := &parent.Passes[i]

		pass := m.AddPass(parentPass.Layer)
		pass.Color.Inherit(parentPass.Color, q)

		if bindings.ColorParent {
			pass.ColorParent.Inherit(parentPass.Color, q)
		}
	}

	for i := range parent.Shared {
		m.Shared[i].Inherit(parent.Shared[i], q)
	}
}

// Release drops every texture reference held by the model.
func (m *RenderModel) Release() {
	for i := range m.Passes {
		m.Passes[i].release()
	}
	for i := range m.Shared {
		m.Shared[i].Clear()
	}
	m.Passes = nil
}
