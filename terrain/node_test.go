package terrain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tellusmaps/terrastream/tile"
)

func TestNodeCreateChildren(t *testing.T) {
	e := newTestEngine(t, Config{})
	root := e.Root()

	require.Nil(t, root.Child(tile.QuadrantNW))
	require.False(t, root.ChildrenReady())

	root.mutex.Lock()
	root.createChildren()
	root.childrenReady.Store(true)
	root.mutex.Unlock()

	t.Run("tiles have zero or four children", func(t *testing.T) {
		for q := tile.QuadrantNW; q <= tile.QuadrantSE; q++ {
			require.NotNil(t, root.Child(q))
		}
	})

	t.Run("children carry canonical keys in quadrant order", func(t *testing.T) {
		require.Equal(t, tile.Key{LOD: 1, X: 0, Y: 0}, root.Child(tile.QuadrantNW).Key())
		require.Equal(t, tile.Key{LOD: 1, X: 1, Y: 0}, root.Child(tile.QuadrantNE).Key())
		require.Equal(t, tile.Key{LOD: 1, X: 0, Y: 1}, root.Child(tile.QuadrantSW).Key())
		require.Equal(t, tile.Key{LOD: 1, X: 1, Y: 1}, root.Child(tile.QuadrantSE).Key())
	})

	t.Run("children resolve their parent through the registry", func(t *testing.T) {
		parent, ok := root.Child(tile.QuadrantSE).Parent()
		require.True(t, ok)
		require.Same(t, root, parent)
	})

	t.Run("creation is idempotent", func(t *testing.T) {
		nw := root.Child(tile.QuadrantNW)
		root.mutex.Lock()
		root.createChildren()
		root.mutex.Unlock()
		require.Same(t, nw, root.Child(tile.QuadrantNW))
	})

	t.Run("registry tracks the whole live set", func(t *testing.T) {
		require.Equal(t, 5, e.Registry().Count())
	})
}

func TestNodeChildInheritsParentModel(t *testing.T) {
	e := newTestEngine(t, Config{Bindings: tile.Bindings{ColorParent: true}})
	root := e.Root()

	tex := testTexture("root-color", 4)
	root.merge(colorModelWithTexture(root.Key(), 5, tex))

	root.mutex.Lock()
	root.createChildren()
	root.childrenReady.Store(true)
	root.mutex.Unlock()

	for q := tile.QuadrantNW; q <= tile.QuadrantSE; q++ {
		child := root.Child(q)
		pass := child.Model().Pass(5)
		require.NotNil(t, pass)

		require.Same(t, tex, pass.Color.Texture)
		require.False(t, pass.Color.Owned)
		require.Equal(t, tile.ScaleBias(q), pass.Color.Matrix)

		// The parent-color channel starts out as the same inherited data.
		require.Same(t, tex, pass.ColorParent.Texture)
	}
}

func TestNodeEmptyTile(t *testing.T) {
	masked := tile.Key{LOD: 1, X: 1, Y: 1}
	e := newTestEngine(t, Config{
		Geometry: PlaneGeometryPool{Mask: func(key tile.Key) bool { return key == masked }},
	})
	root := e.Root()

	root.mutex.Lock()
	root.createChildren()
	root.childrenReady.Store(true)
	root.mutex.Unlock()

	empty := root.Child(tile.QuadrantSE)
	require.True(t, empty.Empty())

	t.Run("is not registered", func(t *testing.T) {
		_, ok := e.Registry().Get(masked)
		require.False(t, ok)
	})

	t.Run("is invisible to traversal", func(t *testing.T) {
		fs := &FrameState{Frame: 1, Time: time.Now()}
		require.False(t, empty.Visit(fs))
		require.Empty(t, fs.Drawn())
	})

	t.Run("never goes dormant", func(t *testing.T) {
		require.False(t, empty.isDormant(1000, time.Now().Add(time.Hour)))
	})
}

func TestNodeMarkDirty(t *testing.T) {
	t.Run("nil layer set requests a full reload", func(t *testing.T) {
		e := newTestEngine(t, Config{})
		root := e.Root()
		root.setDirty(false)

		root.MarkDirty(nil)
		require.True(t, root.Dirty())
		require.Nil(t, root.loadRequest.Filter())
	})

	t.Run("layer set becomes the request filter", func(t *testing.T) {
		e := newTestEngine(t, Config{})
		root := e.Root()
		root.setDirty(false)

		root.MarkDirty(tile.NewLayerSet(3))
		require.True(t, root.Dirty())
		require.True(t, root.loadRequest.Filter().Contains(3))
		require.False(t, root.loadRequest.Filter().Contains(4))
	})

	t.Run("layers queued during a load re-arm on merge", func(t *testing.T) {
		e := newTestEngine(t, Config{})
		root := e.Root()

		// Root starts dirty; new layers must wait for the in-flight load.
		require.True(t, root.Dirty())
		root.MarkDirty(tile.NewLayerSet(7))
		require.Nil(t, root.loadRequest.Filter())

		root.merge(colorModel(root.Key(), 1, "first"))

		// Merge cleared the flag, then the queued layers re-armed it.
		require.True(t, root.Dirty())
		require.True(t, root.loadRequest.Filter().Contains(7))
		require.False(t, root.loadRequest.Filter().Contains(1))
	})
}

func TestNodeDormancy(t *testing.T) {
	e := newTestEngine(t, Config{})
	root := e.Root()

	base := time.Now()
	const lastVisit = 100

	root.lastFrame.Store(lastVisit)
	root.lastTime.Store(base.UnixNano())

	minFrames := e.Options().MinExpiryFrames
	later := base.Add(time.Minute)

	t.Run("not dormant at the frame floor", func(t *testing.T) {
		require.False(t, root.isDormant(lastVisit+minFrames, later))
	})

	t.Run("dormant one frame past the floor", func(t *testing.T) {
		require.True(t, root.isDormant(lastVisit+minFrames+1, later))
	})

	t.Run("wall-time floor holds even when frames passed", func(t *testing.T) {
		require.False(t, root.isDormant(lastVisit+1000, base))
	})

	t.Run("frame floor never drops below three", func(t *testing.T) {
		e := newTestEngine(t, Config{Options: Options{MinExpiryFrames: 1, MaxLOD: 4}})
		n := e.Root()
		n.lastFrame.Store(lastVisit)
		n.lastTime.Store(base.UnixNano())

		require.False(t, n.isDormant(lastVisit+3, later))
		require.True(t, n.isDormant(lastVisit+4, later))
	})
}

func TestNodeRemoveSubTiles(t *testing.T) {
	e := newTestEngine(t, Config{})
	root := e.Root()

	root.mutex.Lock()
	root.createChildren()
	root.childrenReady.Store(true)
	root.mutex.Unlock()

	children := make([]*Node, 0, 4)
	for q := tile.QuadrantNW; q <= tile.QuadrantSE; q++ {
		children = append(children, root.Child(q))
	}

	root.removeSubTiles()

	require.False(t, root.ChildrenReady())
	require.Equal(t, 1, e.Registry().Count())

	for _, c := range children {
		require.True(t, c.destroyed)
		require.True(t, c.loadRequest.Canceled())
		_, ok := e.Registry().Get(c.Key())
		require.False(t, ok)
	}
}

func TestNodeKeyValue(t *testing.T) {
	e := newTestEngine(t, Config{})
	root := e.Root()

	root.mutex.Lock()
	root.createChildren()
	root.childrenReady.Store(true)
	root.mutex.Unlock()

	kv := root.Child(tile.QuadrantSE).KeyValue()
	require.Equal(t, float32(1), kv.X())
	require.Equal(t, float32(1), kv.Y())
	require.Equal(t, float32(1), kv.Z())
	require.InDelta(t, 0.5, kv.W(), 1e-6)
}

func colorModelWithTexture(key tile.Key, layer tile.LayerID, tex *tile.Texture) *tile.Model {
	m := colorModel(key, layer, "unused")
	m.ColorLayers[0].Texture = tex
	return m
}
