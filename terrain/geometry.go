package terrain

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/tellusmaps/terrastream/tile"
)

// Bound is an axis-aligned bounding box in world space. World X grows east
// and world Y grows south, matching the tile grid.
type Bound struct {
	Center      mgl64.Vec3
	HalfExtents mgl64.Vec3
}

// Radius returns the radius of the bounding sphere enclosing the box.
func (b Bound) Radius() float64 {
	return b.HalfExtents.Len()
}

// IntersectsSphere reports whether the box intersects a sphere.
func (b Bound) IntersectsSphere(center mgl64.Vec3, radius float64) bool {
	d := 0.0
	for i := 0; i < 3; i++ {
		min := b.Center[i] - b.HalfExtents[i]
		max := b.Center[i] + b.HalfExtents[i]
		if center[i] < min {
			d += (min - center[i]) * (min - center[i])
		} else if center[i] > max {
			d += (center[i] - max) * (center[i] - max)
		}
	}
	return d <= radius*radius
}

// ChildBound returns the quadrant sub-box covering one child tile's share
// of the surface.
func (b Bound) ChildBound(q tile.Quadrant) Bound {
	dx := -0.5
	if q == tile.QuadrantNE || q == tile.QuadrantSE {
		dx = 0.5
	}
	dy := -0.5
	if q == tile.QuadrantSW || q == tile.QuadrantSE {
		dy = 0.5
	}

	return Bound{
		Center: mgl64.Vec3{
			b.Center.X() + dx*b.HalfExtents.X(),
			b.Center.Y() + dy*b.HalfExtents.Y(),
			b.Center.Z(),
		},
		HalfExtents: mgl64.Vec3{
			b.HalfExtents.X() / 2,
			b.HalfExtents.Y() / 2,
			b.HalfExtents.Z(),
		},
	}
}

// Geometry is the reusable surface-geometry handle supplied by the
// geometry collaborator. The engine consumes only its bound and emptiness.
type Geometry interface {
	Bound() Bound

	// Empty reports that the tile has no renderable surface, e.g. it is
	// fully excluded by a masking boundary.
	Empty() bool
}

// GeometryPool builds or reuses surface geometry for tile keys.
type GeometryPool interface {
	Geometry(key tile.Key, tileSize int) Geometry
}

// PlaneGeometryPool is the default geometry collaborator: the world is the
// unit square at level 0, subdivided with the tile grid. Mask, when set,
// reports keys whose surface is fully masked out.
type PlaneGeometryPool struct {
	// WorldSize is the edge length of the level-0 tile. Defaults to 1.
	WorldSize float64

	Mask func(key tile.Key) bool
}

type planeGeometry struct {
	bound Bound
	empty bool
}

func (g planeGeometry) Bound() Bound { return g.bound }
func (g planeGeometry) Empty() bool  { return g.empty }

func (p PlaneGeometryPool) Geometry(key tile.Key, tileSize int) Geometry {
	size := p.WorldSize
	if size <= 0 {
		size = 1
	}

	n := float64(uint64(1) << key.LOD)
	extent := size / n

	return planeGeometry{
		bound: Bound{
			Center: mgl64.Vec3{
				(float64(key.X) + 0.5) * extent,
				(float64(key.Y) + 0.5) * extent,
				0,
			},
			HalfExtents: mgl64.Vec3{extent / 2, extent / 2, extent / 64},
		},
		empty: p.Mask != nil && p.Mask(key),
	}
}
