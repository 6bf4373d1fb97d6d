package tile

import "github.com/go-gl/mathgl/mgl32"

// Scale and bias matrices, one per key quadrant. Each maps the unit square
// onto the matching quarter of the parent's texture space.
var scaleBias = [4]mgl32.Mat4{
	mgl32.Translate3D(0.0, 0.5, 0).Mul4(mgl32.Scale3D(0.5, 0.5, 1.0)),
	mgl32.Translate3D(0.5, 0.5, 0).Mul4(mgl32.Scale3D(0.5, 0.5, 1.0)),
	mgl32.Translate3D(0.0, 0.0, 0).Mul4(mgl32.Scale3D(0.5, 0.5, 1.0)),
	mgl32.Translate3D(0.5, 0.0, 0).Mul4(mgl32.Scale3D(0.5, 0.5, 1.0)),
}

// ScaleBias returns the quadrant scale/bias matrix.
func ScaleBias(q Quadrant) mgl32.Mat4 {
	return scaleBias[q]
}

// Sampler pairs a texture with the transform mapping a tile's unit quad
// into that texture's space.
//
// Owned reports whether the texture is this tile's own data, as opposed to
// data inherited and rescaled from an ancestor. Ownership is tracked
// explicitly rather than inferred from the matrix value, so a binding whose
// scale/bias degenerates to identity cannot be misclassified.
type Sampler struct {
	Texture *Texture
	Matrix  mgl32.Mat4
	Owned   bool
}

// NewSampler returns the default sampler state: no texture, identity
// matrix, not owned.
func NewSampler() Sampler {
	return Sampler{Matrix: mgl32.Ident4()}
}

func (s *Sampler) Valid() bool {
	return s.Texture != nil
}

// SetOwned installs the tile's own texture with an identity matrix,
// releasing any previous texture.
func (s *Sampler) SetOwned(t *Texture) {
	s.set(t, mgl32.Ident4(), true)
}

// SetOwnedMatrix installs the tile's own texture with an explicit matrix.
func (s *Sampler) SetOwnedMatrix(t *Texture, m mgl32.Mat4) {
	s.set(t, m, true)
}

// Inherit copies the parent sampler and pre-multiplies its matrix with the
// quadrant scale/bias, marking the result as inherited.
func (s *Sampler) Inherit(parent Sampler, q Quadrant) {
	s.set(parent.Texture, parent.Matrix.Mul4(scaleBias[q]), false)
}

// Derive copies another sampler's texture and matrix verbatim, keeping the
// result marked as derived rather than owned.
func (s *Sampler) Derive(from Sampler) {
	s.set(from.Texture, from.Matrix, false)
}

// Clear drops the texture reference and resets the default state.
func (s *Sampler) Clear() {
	s.set(nil, mgl32.Ident4(), false)
}

func (s *Sampler) set(t *Texture, m mgl32.Mat4, owned bool) {
	if s.Texture != t {
		t.Retain()
		s.Texture.Release()
		s.Texture = t
	}
	s.Matrix = m
	s.Owned = owned
}
