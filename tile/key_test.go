package tile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyParent(t *testing.T) {
	t.Run("root key has no parent", func(t *testing.T) {
		_, ok := Key{LOD: 0, X: 0, Y: 0}.Parent()
		require.False(t, ok)
	})

	t.Run("every non-root key has exactly one parent", func(t *testing.T) {
		k := Key{LOD: 3, X: 5, Y: 6}
		p, ok := k.Parent()
		require.True(t, ok)
		require.Equal(t, Key{LOD: 2, X: 2, Y: 3}, p)
	})
}

func TestKeyChild(t *testing.T) {
	k := Key{LOD: 1, X: 1, Y: 0}

	require.Equal(t, Key{LOD: 2, X: 2, Y: 0}, k.Child(QuadrantNW))
	require.Equal(t, Key{LOD: 2, X: 3, Y: 0}, k.Child(QuadrantNE))
	require.Equal(t, Key{LOD: 2, X: 2, Y: 1}, k.Child(QuadrantSW))
	require.Equal(t, Key{LOD: 2, X: 3, Y: 1}, k.Child(QuadrantSE))
}

func TestKeyChildParentRoundTrip(t *testing.T) {
	k := Key{LOD: 4, X: 9, Y: 13}

	for q := QuadrantNW; q <= QuadrantSE; q++ {
		c := k.Child(q)
		p, ok := c.Parent()
		require.True(t, ok)
		require.Equal(t, k, p)
		require.Equal(t, q, c.Quadrant())
	}
}

func TestKeyNeighbor(t *testing.T) {
	t.Run("east and south neighbors", func(t *testing.T) {
		k := Key{LOD: 2, X: 1, Y: 1}

		east, ok := k.Neighbor(1, 0)
		require.True(t, ok)
		require.Equal(t, Key{LOD: 2, X: 2, Y: 1}, east)

		south, ok := k.Neighbor(0, 1)
		require.True(t, ok)
		require.Equal(t, Key{LOD: 2, X: 1, Y: 2}, south)
	})

	t.Run("neighbor off the grid does not exist", func(t *testing.T) {
		k := Key{LOD: 1, X: 1, Y: 1}

		_, ok := k.Neighbor(1, 0)
		require.False(t, ok)

		_, ok = Key{LOD: 1, X: 0, Y: 0}.Neighbor(-1, 0)
		require.False(t, ok)
	})
}

func TestKeyString(t *testing.T) {
	require.Equal(t, "3/5/6", Key{LOD: 3, X: 5, Y: 6}.String())
}
