package terrain

import (
	"context"
	"math"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
)

// CameraKind classifies the camera driving a traversal.
type CameraKind int

const (
	// CameraPrimary is the true viewpoint. It may subdivide and load.
	CameraPrimary CameraKind = iota

	// CameraDecoupled is a viewpoint-inheriting camera (shadows,
	// reflections). It renders only what the primary viewpoint resolved:
	// no subdivision, no loading.
	CameraDecoupled

	// CameraStealth renders recently accepted surfaces without touching
	// tile state at all.
	CameraStealth
)

// FrameState carries one frame's traversal inputs and collects the tiles
// that contributed visible geometry.
type FrameState struct {
	Frame     uint64
	Time      time.Time
	Viewpoint mgl64.Vec3
	Camera    CameraKind

	// LODScale scales visibility ranges; >1 loads detail earlier.
	LODScale float64

	// FieldOfViewY (radians) and ViewportHeight (pixels) feed the
	// screen-size policy.
	FieldOfViewY   float64
	ViewportHeight float64

	drawn []*Node
}

func (fs *FrameState) normalize() {
	if fs.Time.IsZero() {
		fs.Time = time.Now()
	}
	if fs.LODScale <= 0 {
		fs.LODScale = 1
	}
	if fs.FieldOfViewY <= 0 {
		fs.FieldOfViewY = math.Pi / 3
	}
	if fs.ViewportHeight <= 0 {
		fs.ViewportHeight = 1080
	}
}

func (fs *FrameState) draw(n *Node) {
	fs.drawn = append(fs.drawn, n)
	n.lastSurfaceFrame.Store(fs.Frame)
}

// Drawn returns the tiles whose surfaces were accepted this frame.
func (fs *FrameState) Drawn() []*Node {
	return fs.drawn
}

// Visit is the per-frame traversal entry point. It returns whether the
// node contributed visible geometry.
func (n *Node) Visit(fs *FrameState) bool {
	if n.empty || n.destroyed {
		return false
	}

	if fs.Camera == CameraStealth {
		return n.cullStealth(fs)
	}

	// Update the visit bookkeeping so this tile doesn't become dormant.
	n.lastFrame.Store(fs.Frame)
	n.lastTime.Store(fs.Time.UnixNano())

	return n.cull(fs)
}

func (n *Node) cull(fs *FrameState) bool {
	subdivide := n.shouldSubdivide(fs)

	canCreateChildren := subdivide
	canLoadData := true
	acceptSurface := false

	// In progressive mode children wait until the parent shows real data.
	if n.dirty.Load() && n.ctx.Options.Progressive {
		canCreateChildren = false
	}

	// Decoupled cameras render only what the true viewpoint resolved.
	if fs.Camera == CameraDecoupled {
		canCreateChildren = false
		canLoadData = false
	}

	if subdivide {
		createdNow := false

		// Double-checked: concurrent traversals in the same frame must not
		// create duplicate child sets.
		if !n.childrenReady.Load() && canCreateChildren {
			n.mutex.Lock()
			if !n.childrenReady.Load() {
				n.createChildren()
				n.childrenReady.Store(true)
				createdNow = true

				// Freshly created children only carry inherited data; the
				// parent surface stands in for exactly one frame, and
				// loading waits a frame as well.
				canLoadData = false
			}
			n.mutex.Unlock()
		}

		if n.childrenReady.Load() && !createdNow {
			for _, c := range n.children {
				c.Visit(fs)
			}
		} else {
			acceptSurface = true
		}
	} else {
		acceptSurface = true
	}

	if acceptSurface {
		fs.draw(n)
	}

	if n.dirty.Load() && canLoadData {
		n.load(fs)
	}

	return true
}

// cullStealth serves shadow/reflection passes: accept the surface if a
// primary camera accepted it within the last two frames, otherwise descend
// into ready children. Never subdivides, never loads.
func (n *Node) cullStealth(fs *FrameState) bool {
	if fs.Frame-n.lastSurfaceFrame.Load() < 2 {
		fs.drawn = append(fs.drawn, n)
		return true
	}

	visible := false
	if n.childrenReady.Load() {
		for _, c := range n.children {
			if c.Visit(fs) {
				visible = true
			}
		}
	}
	return visible
}

// shouldSubdivide decides whether this node should defer to children,
// using either the per-level visibility-range table or the projected
// screen-size estimate.
func (n *Node) shouldSubdivide(fs *FrameState) bool {
	if n.key.LOD >= n.ctx.Options.MaxLOD {
		return false
	}

	if n.ctx.Options.RangeMode == RangeModePixelSize {
		return n.pixelSize(fs) > n.ctx.Options.TilePixelSize*4
	}

	childRange := n.ctx.Selection.VisibilityRange(n.key.LOD + 1)
	return n.surface.AnyChildBoxIntersectsSphere(fs.Viewpoint, childRange, fs.LODScale)
}

// pixelSize estimates the node's projected on-screen size.
func (n *Node) pixelSize(fs *FrameState) float64 {
	bound := n.surface.Bound()
	radius := bound.Radius()

	distance := fs.Viewpoint.Sub(bound.Center).Len()
	if distance <= radius {
		return math.Inf(1)
	}

	return radius / (distance * math.Tan(fs.FieldOfViewY/2)) * fs.ViewportHeight / 2 * fs.LODScale
}

// loadPriority combines a level term (direction set by
// HighResolutionFirst) that dominates with a distance term in [0..1]
// breaking ties toward nearer tiles.
func (n *Node) loadPriority(fs *FrameState) float64 {
	si := n.ctx.Selection

	lodPriority := float64(n.key.LOD)
	if !n.ctx.Options.HighResolutionFirst {
		lodPriority = float64(si.NumLODs()) - float64(n.key.LOD)
	}

	distance := fs.Viewpoint.Sub(n.surface.Bound().Center).Len()
	distPriority := 1 - distance/si.VisibilityRange(0)

	return lodPriority + distPriority
}

func (n *Node) load(fs *FrameState) {
	n.ctx.Loader.Load(n.loadRequest, n.loadPriority(fs))
}

// LoadSync bypasses the load queue: it fetches this tile's data inline and
// merges it immediately. Off the per-frame critical path only.
func (n *Node) LoadSync(ctx context.Context) error {
	if n.empty {
		return nil
	}

	model, err := n.ctx.Loader.LoadSync(ctx, n.loadRequest)
	if err != nil {
		return errors.New("preloading tile failed").
			WithTag("key", n.key.String()).
			Wrap(err)
	}
	if model.Empty() {
		return nil
	}

	n.merge(model)
	return nil
}

// LoadChildren forces the subtree one level down into existence with real
// data before it is revealed: children are created under the node lock and
// each is loaded synchronously.
func (n *Node) LoadChildren(ctx context.Context) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.childrenReady.Load() {
		return
	}

	n.createChildren()
	n.childrenReady.Store(true)

	for _, c := range n.children {
		if c == nil {
			continue
		}
		if err := c.LoadSync(ctx); err != nil {
			logs.WithTag("key", c.key.String()).Warn(err)
		}
	}
}
