package terrain

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/tellusmaps/terrastream/tile"
)

// Surface wraps a tile's surface geometry together with the elevation
// raster cache used for bound computation and intersection queries. The
// raster mirrors the elevation sampler: it may be this tile's own data or
// an ancestor's, rescaled.
type Surface struct {
	geometry Geometry

	elevationRaster *tile.Raster
	elevationMatrix mgl32.Mat4
}

func newSurface(geometry Geometry) *Surface {
	return &Surface{
		geometry:        geometry,
		elevationMatrix: mgl32.Ident4(),
	}
}

func (s *Surface) Bound() Bound {
	return s.geometry.Bound()
}

func (s *Surface) SetElevationRaster(raster *tile.Raster, matrix mgl32.Mat4) {
	s.elevationRaster = raster
	s.elevationMatrix = matrix
}

func (s *Surface) ElevationRaster() (*tile.Raster, mgl32.Mat4) {
	return s.elevationRaster, s.elevationMatrix
}

// AnyChildBoxIntersectsSphere reports whether any child quadrant's bounding
// box intersects the sphere of the given radius around the viewpoint.
func (s *Surface) AnyChildBoxIntersectsSphere(viewpoint mgl64.Vec3, radius, lodScale float64) bool {
	bound := s.geometry.Bound()
	r := radius * lodScale

	for q := tile.QuadrantNW; q <= tile.QuadrantSE; q++ {
		if bound.ChildBound(q).IntersectsSphere(viewpoint, r) {
			return true
		}
	}
	return false
}
