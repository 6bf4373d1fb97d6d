package terrain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tellusmaps/terrastream/tile"
)

func TestRegistry(t *testing.T) {
	e := newTestEngine(t, Config{})
	root := e.Root()
	r := e.Registry()

	t.Run("the root registers itself", func(t *testing.T) {
		n, ok := r.Get(tile.Key{})
		require.True(t, ok)
		require.Same(t, root, n)
		require.Equal(t, 1, r.Count())
	})

	t.Run("snapshot covers the live set", func(t *testing.T) {
		subdivide(root)
		require.Len(t, r.Tiles(), 5)
	})

	t.Run("remove is identity checked", func(t *testing.T) {
		// A stale node for an occupied key must not unregister the
		// current occupant.
		nw := root.Child(tile.QuadrantNW)
		stale := &Node{key: nw.Key(), ctx: root.ctx}
		r.Remove(stale)

		n, ok := r.Get(nw.Key())
		require.True(t, ok)
		require.Same(t, nw, n)
	})

	t.Run("remove deletes the occupant", func(t *testing.T) {
		nw := root.Child(tile.QuadrantNW)
		r.Remove(nw)

		_, ok := r.Get(nw.Key())
		require.False(t, ok)
		require.Equal(t, 4, r.Count())
	})
}
