package terrain

import "time"

// RangeMode selects how the subdivision policy measures detail.
type RangeMode int

const (
	// RangeModeDistance subdivides when a child's bounding box intersects
	// the visibility-range sphere for the next level.
	RangeModeDistance RangeMode = iota

	// RangeModePixelSize subdivides when the estimated on-screen size of
	// the tile exceeds TilePixelSize * 4.
	RangeModePixelSize
)

// Options configures the terrain engine.
type Options struct {
	// TileSize is the number of vertices along one edge of a tile's
	// surface geometry.
	TileSize int

	// TilePixelSize is the target on-screen size of a tile in pixels,
	// used by RangeModePixelSize.
	TilePixelSize float64

	RangeMode RangeMode

	// MaxLOD is the deepest level the tree may subdivide to.
	MaxLOD uint32

	// VisibilityRange is the distance at which level-0 tiles are visible.
	// Each deeper level halves the range unless RangeFactor says otherwise.
	VisibilityRange float64

	// RangeFactor is the ratio between the visibility ranges of
	// consecutive levels.
	RangeFactor float64

	// MinExpiryFrames is the number of frames a tile must go unvisited
	// before it may become dormant; a floor of 3 always applies.
	MinExpiryFrames uint64

	// MinExpiryTime is the wall time a tile must go unvisited before it
	// may become dormant.
	MinExpiryTime time.Duration

	// ExpirySweepFrames is the number of frames between eviction sweeps.
	ExpirySweepFrames uint64

	// Progressive suppresses subdivision under tiles whose own data has
	// not arrived yet, so children never outrun their parent.
	Progressive bool

	// HighResolutionFirst loads deeper tiles before shallower ones.
	HighResolutionFirst bool

	// StitchNormalMaps copies edge texels from east/south neighbors into
	// freshly merged normal maps for seamless shading.
	StitchNormalMaps bool

	// Workers is the size of the loader's background pool.
	Workers int
}

// Normalize fills in defaults for unset fields.
func (o *Options) Normalize() {
	if o.TileSize <= 0 {
		o.TileSize = 17
	}
	if o.TilePixelSize <= 0 {
		o.TilePixelSize = 256
	}
	if o.MaxLOD == 0 {
		o.MaxLOD = 19
	}
	if o.VisibilityRange <= 0 {
		o.VisibilityRange = 4.0
	}
	if o.RangeFactor <= 0 {
		o.RangeFactor = 2.0
	}
	if o.MinExpiryTime <= 0 {
		o.MinExpiryTime = 5 * time.Second
	}
	if o.ExpirySweepFrames == 0 {
		o.ExpirySweepFrames = 16
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
}
