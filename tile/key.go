package tile

import "fmt"

// Quadrant identifies one of the four children of a tile, in row-major
// order from the north-west corner.
type Quadrant int

const (
	QuadrantNW Quadrant = iota
	QuadrantNE
	QuadrantSW
	QuadrantSE
)

// Key addresses one quadrant of the globe at a resolution level. The Y axis
// grows southward, matching slippy-map tile schemes.
type Key struct {
	LOD uint32
	X   uint32
	Y   uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.LOD, k.X, k.Y)
}

// Parent returns the key one level up. The second return value is false for
// level-0 keys, which have no parent.
func (k Key) Parent() (Key, bool) {
	if k.LOD == 0 {
		return Key{}, false
	}
	return Key{LOD: k.LOD - 1, X: k.X / 2, Y: k.Y / 2}, true
}

// Child returns the key of the given quadrant one level down.
func (k Key) Child(q Quadrant) Key {
	return Key{
		LOD: k.LOD + 1,
		X:   k.X*2 + uint32(q)%2,
		Y:   k.Y*2 + uint32(q)/2,
	}
}

// Quadrant returns which quadrant of its parent this key occupies.
func (k Key) Quadrant() Quadrant {
	return Quadrant((k.Y%2)*2 + k.X%2)
}

// Neighbor returns the key offset by (dx, dy) tiles at the same level. The
// second return value is false when the offset walks off the tile grid.
func (k Key) Neighbor(dx, dy int) (Key, bool) {
	n := uint32(1) << k.LOD

	x := int64(k.X) + int64(dx)
	y := int64(k.Y) + int64(dy)
	if x < 0 || y < 0 || x >= int64(n) || y >= int64(n) {
		return Key{}, false
	}
	return Key{LOD: k.LOD, X: uint32(x), Y: uint32(y)}, true
}
