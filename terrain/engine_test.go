package terrain

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"github.com/tellusmaps/terrastream/tile"
)

func TestNewEngineRequiresFetcher(t *testing.T) {
	_, err := NewEngine(context.Background(), Config{})
	require.Error(t, err)
}

// TestEngineLifecycle walks one tile family through its whole life: the
// root gets data, subdivides, a child receives its own data, the root
// refreshes, and finally the family collapses.
func TestEngineLifecycle(t *testing.T) {
	e := newTestEngine(t, Config{Options: shallowOptions()})
	root := e.Root()

	rootTex := testTexture("root-t0", 4)
	root.merge(colorModelWithTexture(root.Key(), 5, rootTex))

	// Subdivision frame plus the frame where children take over.
	e.Frame(&FrameState{Viewpoint: nearViewpoint, Frame: 1})
	sum := e.Frame(&FrameState{Viewpoint: nearViewpoint, Frame: 2})
	require.Len(t, sum.Drawn, 4)

	t.Run("children start on rescaled root data", func(t *testing.T) {
		for q := tile.QuadrantNW; q <= tile.QuadrantSE; q++ {
			pass := root.Child(q).Model().Pass(5)
			require.NotNil(t, pass)
			require.Same(t, rootTex, pass.Color.Texture)
			require.False(t, pass.Color.Owned)
			require.Equal(t, tile.ScaleBias(q), pass.Color.Matrix)
		}
	})

	child := root.Child(tile.QuadrantNW)
	childTex := testTexture("child-t1", 4)

	t.Run("a child's own data replaces the inheritance", func(t *testing.T) {
		child.merge(colorModelWithTexture(child.Key(), 5, childTex))

		pass := child.Model().Pass(5)
		require.Same(t, childTex, pass.Color.Texture)
		require.True(t, pass.Color.Owned)
		require.Equal(t, mgl32.Ident4(), pass.Color.Matrix)

		// Siblings still show the root's data.
		require.Same(t, rootTex, root.Child(tile.QuadrantSE).Model().Pass(5).Color.Texture)
	})

	t.Run("a root refresh reaches only inheriting children", func(t *testing.T) {
		nextTex := testTexture("root-t2", 4)
		root.merge(colorModelWithTexture(root.Key(), 5, nextTex))

		require.Same(t, childTex, child.Model().Pass(5).Color.Texture)
		for _, q := range []tile.Quadrant{tile.QuadrantNE, tile.QuadrantSW, tile.QuadrantSE} {
			pass := root.Child(q).Model().Pass(5)
			require.Same(t, nextTex, pass.Color.Texture)
			require.Equal(t, tile.ScaleBias(q), pass.Color.Matrix)
		}
	})

	t.Run("the family collapses once dormant", func(t *testing.T) {
		evicted := e.ExpireDormantTiles(100, time.Now().Add(time.Minute))
		require.Equal(t, 4, evicted)
		require.False(t, root.ChildrenReady())
		require.Equal(t, 1, e.Registry().Count())
	})
}

// TestEngineStreaming drives the full asynchronous path: traversal submits
// loads, workers fetch concurrently, and results merge at frame
// boundaries.
func TestEngineStreaming(t *testing.T) {
	f := fetcherFunc(func(ctx context.Context, key tile.Key, filter tile.LayerSet) (*tile.Model, error) {
		return colorModel(key, 5, "streamed-"+key.String()), nil
	})

	opts := testOptions()
	opts.MaxLOD = 1
	opts.Workers = 2

	e := newTestEngine(t, Config{Options: opts, Fetcher: f})

	merged := 0
	require.Eventually(t, func() bool {
		sum := e.Frame(&FrameState{Viewpoint: nearViewpoint})
		merged += sum.Merged
		return merged >= 5 && !e.Root().Dirty()
	}, 5*time.Second, 5*time.Millisecond)

	require.True(t, e.Root().Model().Pass(5).Color.Owned)
	for q := tile.QuadrantNW; q <= tile.QuadrantSE; q++ {
		require.False(t, e.Root().Child(q).Dirty())
		require.True(t, e.Root().Child(q).Model().Pass(5).Color.Owned)
	}
}

func TestEngineFailedLoadsStayDirty(t *testing.T) {
	attempts := make(chan tile.Key, 64)
	f := fetcherFunc(func(ctx context.Context, key tile.Key, filter tile.LayerSet) (*tile.Model, error) {
		attempts <- key
		return nil, context.DeadlineExceeded
	})

	opts := testOptions()
	opts.MaxLOD = 0

	e := newTestEngine(t, Config{Options: opts, Fetcher: f})

	// The first attempt fails; the tile must stay dirty and resubmit on a
	// later frame.
	require.Eventually(t, func() bool {
		e.Frame(&FrameState{Viewpoint: nearViewpoint})
		return len(attempts) >= 2
	}, 5*time.Second, 5*time.Millisecond)

	require.True(t, e.Root().Dirty())
}

func TestEngineRefreshLayers(t *testing.T) {
	e := newTestEngine(t, Config{Options: shallowOptions()})
	root := e.Root()
	subdivide(root)

	for _, n := range e.Registry().Tiles() {
		n.setDirty(false)
	}

	e.RefreshLayers(tile.NewLayerSet(8))

	for _, n := range e.Registry().Tiles() {
		require.True(t, n.Dirty())
		require.True(t, n.loadRequest.Filter().Contains(8))
		require.False(t, n.loadRequest.Filter().Contains(5))
	}
}

func TestEngineFrameDefaults(t *testing.T) {
	e := newTestEngine(t, Config{})

	sum := e.Frame(nil)
	require.Equal(t, uint64(1), sum.Frame)

	sum = e.Frame(&FrameState{Viewpoint: farViewpoint})
	require.Equal(t, uint64(2), sum.Frame)
	require.True(t, sum.Visible)
}
