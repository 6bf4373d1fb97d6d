package terrain

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tellusmaps/terrastream/loader"
	"github.com/tellusmaps/terrastream/tile"
)

// minMinExpiryFrames is the floor on the dormancy frame threshold; it
// absorbs transient camera jitter so a collapse is not immediately undone.
const minMinExpiryFrames = 3

var generations atomic.Uint64

// Node is one tile of the terrain quadtree. It exclusively owns its render
// model, its surface and its zero-or-four children; the parent and neighbor
// relations are key lookups through the live-tile registry.
//
// Render model mutations are confined to the traversal thread. Only child
// creation is additionally locked, because concurrent traversals of the
// same frame may race to subdivide the same node.
type Node struct {
	key tile.Key
	ctx *Context

	parentKey tile.Key
	hasParent bool

	surface  *Surface
	model    *tile.RenderModel
	keyValue mgl32.Vec4

	mutex         sync.Mutex
	children      [4]*Node
	childrenReady atomic.Bool

	dirty       atomic.Bool
	newLayers   tile.LayerSet
	loadRequest *loader.Request
	generation  uint64

	lastFrame        atomic.Uint64
	lastTime         atomic.Int64
	lastSurfaceFrame atomic.Uint64

	empty     bool
	destroyed bool
}

// newNode builds a tile: surface geometry, an initial render model copied
// and rescaled from the parent so there is something to draw immediately,
// and a pending load request for this tile's own data.
func newNode(key tile.Key, parent *Node, ctx *Context) *Node {
	n := &Node{
		key:        key,
		ctx:        ctx,
		generation: generations.Add(1),
		model:      tile.NewRenderModel(ctx.Bindings),
	}

	geometry := ctx.Geometry.Geometry(key, ctx.Options.TileSize)
	if geometry.Empty() {
		// Fully contained by a masking boundary: the node exists but is
		// transparent to rendering and subdivision.
		logs.WithTag("key", key.String()).Debug("tile is empty")
		instrumentEmptyTile()
		n.empty = true
		return n
	}

	n.surface = newSurface(geometry)
	n.loadRequest = loader.NewRequest(key, n.generation)

	if parent != nil {
		n.parentKey = parent.key
		n.hasParent = true

		n.model.InheritFrom(parent.model, key.Quadrant(), ctx.Bindings)

		// Seed the elevation raster cache from the inherited sampler.
		if elev := n.model.Elevation(); elev.Valid() && elev.Texture.Raster != nil {
			n.surface.SetElevationRaster(elev.Texture.Raster, elev.Matrix)
		}
	}

	n.computeKeyValue()
	n.dirty.Store(true)

	ctx.Registry.Add(n)

	logs.WithTag("key", key.String()).Debug("tile added")
	ctx.Notifier.TileAdded(key, n)
	return n
}

func (n *Node) Key() tile.Key { return n.key }

func (n *Node) Empty() bool { return n.empty }

func (n *Node) Dirty() bool { return n.dirty.Load() }

// Model returns the node's render model. It must only be read between
// frames or on the traversal thread.
func (n *Node) Model() *tile.RenderModel { return n.model }

func (n *Node) Surface() *Surface { return n.surface }

// KeyValue is the per-tile key uniform: x and y modulo 2^16, the level,
// and the largest horizontal extent of the surface bound.
func (n *Node) KeyValue() mgl32.Vec4 { return n.keyValue }

// Parent resolves the parent tile through the registry. It is a non-owning
// lookup: the parent may have been evicted.
func (n *Node) Parent() (*Node, bool) {
	if !n.hasParent {
		return nil, false
	}
	return n.ctx.Registry.Get(n.parentKey)
}

func (n *Node) ChildrenReady() bool { return n.childrenReady.Load() }

// Child returns the child in the given quadrant, or nil before
// subdivision.
func (n *Node) Child(q tile.Quadrant) *Node {
	if !n.childrenReady.Load() {
		return nil
	}
	return n.children[q]
}

// Bound returns the node's bounding volume, derived from the surface
// geometry only; children contribute nothing.
func (n *Node) Bound() Bound {
	return n.surface.Bound()
}

func (n *Node) computeKeyValue() {
	bound := n.surface.Bound()
	n.keyValue = mgl32.Vec4{
		float32(math.Mod(float64(n.key.X), 65536)),
		float32(math.Mod(float64(n.key.Y), 65536)),
		float32(n.key.LOD),
		float32(math.Max(bound.HalfExtents.X()*2, bound.HalfExtents.Y()*2)),
	}
}

// createChildren constructs the four children in quadrant order. The
// caller must hold n.mutex; this is a contract, not a runtime check.
func (n *Node) createChildren() {
	if n.childrenReady.Load() {
		return
	}
	for q := tile.QuadrantNW; q <= tile.QuadrantSE; q++ {
		n.children[q] = newNode(n.key.Child(q), n, n.ctx)
	}
}

// MarkDirty schedules a reload. A nil layer set reloads everything; a
// non-nil set restricts the next fetch to those layers. If a load is
// already in flight the filter is queued and re-armed once the current
// load merges.
func (n *Node) MarkDirty(layers tile.LayerSet) {
	if n.empty {
		return
	}

	if layers == nil {
		n.newLayers = nil
		n.loadRequest.SetFilter(nil)
		n.dirty.Store(true)
		return
	}

	if n.newLayers == nil {
		n.newLayers = tile.NewLayerSet()
	}
	for l := range layers {
		n.newLayers.Add(l)
	}

	if !n.dirty.Load() {
		n.setDirty(false)
	}
}

// setDirty applies the original engine's re-arm rule: clearing the flag
// while new layers are queued installs them as the request filter and
// dirties the node again.
func (n *Node) setDirty(dirty bool) {
	n.dirty.Store(dirty)

	if !dirty && len(n.newLayers) > 0 {
		n.loadRequest.SetFilter(n.newLayers)
		n.newLayers = nil
		n.dirty.Store(true)
	}
}

// isDormant reports whether the node has gone unvisited for longer than
// both the frame and wall-time expiry floors. Empty tiles are never
// dormant: the visit skips them before bookkeeping, so their timestamps
// would otherwise read as stale forever.
func (n *Node) isDormant(frame uint64, now time.Time) bool {
	if n.empty {
		return false
	}

	minFrames := n.ctx.Options.MinExpiryFrames
	if minFrames < minMinExpiryFrames {
		minFrames = minMinExpiryFrames
	}

	if frame-n.lastFrame.Load() <= minFrames {
		return false
	}
	return now.Sub(time.Unix(0, n.lastTime.Load())) > n.ctx.Options.MinExpiryTime
}

// areSubTilesDormant reports whether the sibling group below this node is
// collapsible: all four children simultaneously dormant.
func (n *Node) areSubTilesDormant(frame uint64, now time.Time) bool {
	if !n.childrenReady.Load() {
		return false
	}
	for _, c := range n.children {
		if c != nil && !c.empty && !c.isDormant(frame, now) {
			return false
		}
	}
	return true
}

// removeSubTiles destroys all four children as one atomic operation and
// reverts this node to a leaf. Safe to call only once the subtree is
// confirmed dormant.
func (n *Node) removeSubTiles() {
	n.childrenReady.Store(false)
	for q, c := range n.children {
		if c != nil {
			c.destroy()
			n.children[q] = nil
		}
	}
}

// destroy tears down this node and its whole subtree: outstanding loads
// are canceled first so a late completion cannot touch a freed tile.
func (n *Node) destroy() {
	if n.destroyed {
		return
	}
	n.destroyed = true

	if n.childrenReady.Load() {
		n.removeSubTiles()
	}

	if n.loadRequest != nil {
		n.loadRequest.Cancel()
	}

	n.model.Release()
	if !n.empty {
		n.ctx.Registry.Remove(n)
		n.ctx.Notifier.TileRemoved(n.key)
	}
	instrumentEviction()
}
