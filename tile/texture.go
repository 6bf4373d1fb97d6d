package tile

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// Raster is the pixel payload of a texture. Elevation rasters store height
// in the first component; normal maps store a packed normal per texel.
type Raster struct {
	Width  int
	Height int
	Texels []mgl32.Vec4
}

func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Texels: make([]mgl32.Vec4, width*height),
	}
}

func (r *Raster) At(x, y int) mgl32.Vec4 {
	return r.Texels[y*r.Width+x]
}

func (r *Raster) Set(x, y int, v mgl32.Vec4) {
	r.Texels[y*r.Width+x] = v
}

// Texture is a shared, reference-counted texture handle. A texture may be
// referenced simultaneously by a tile and by any number of descendants that
// inherited it; it is released when the last referencing sampler is
// overwritten or its node destroyed.
//
// A freshly created texture has a zero reference count. The first sampler
// that adopts it retains it.
type Texture struct {
	Name   string
	Raster *Raster

	refs      atomic.Int32
	onRelease func()
}

func NewTexture(name string, raster *Raster) *Texture {
	return &Texture{Name: name, Raster: raster}
}

// OnRelease registers a hook invoked when the reference count drops to
// zero, e.g. to free a GPU handle.
func (t *Texture) OnRelease(fn func()) {
	t.onRelease = fn
}

func (t *Texture) Retain() *Texture {
	if t != nil {
		t.refs.Add(1)
	}
	return t
}

func (t *Texture) Release() {
	if t == nil {
		return
	}
	if t.refs.Add(-1) == 0 && t.onRelease != nil {
		t.onRelease()
	}
}

// Refs returns the current reference count.
func (t *Texture) Refs() int32 {
	if t == nil {
		return 0
	}
	return t.refs.Load()
}
