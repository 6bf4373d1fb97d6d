package terrain

import (
	"sync"

	"github.com/tellusmaps/terrastream/tile"
)

// Registry tracks every live tile by key. Parent and neighbor relations are
// resolved through it rather than held as owning references; a lookup that
// misses means the referenced tile has been evicted.
type Registry struct {
	mutex sync.RWMutex
	tiles map[tile.Key]*Node
}

func NewRegistry() *Registry {
	return &Registry{
		tiles: make(map[tile.Key]*Node),
	}
}

func (r *Registry) Add(n *Node) {
	r.mutex.Lock()
	r.tiles[n.Key()] = n
	r.mutex.Unlock()

	instrumentIncreaseTileGauge()
	instrumentCountTile()

	// Tell the west and north neighbors their east/south neighbor arrived,
	// outside the lock: stitching reads back through the registry.
	if west, ok := n.Key().Neighbor(-1, 0); ok {
		if nb, ok := r.Get(west); ok {
			nb.notifyOfArrival(n)
		}
	}
	if north, ok := n.Key().Neighbor(0, -1); ok {
		if nb, ok := r.Get(north); ok {
			nb.notifyOfArrival(n)
		}
	}
}

func (r *Registry) Remove(n *Node) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.tiles[n.Key()] == n {
		delete(r.tiles, n.Key())
		instrumentDecreaseTileGauge()
	}
}

func (r *Registry) Get(key tile.Key) (*Node, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n, ok := r.tiles[key]
	return n, ok
}

func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.tiles)
}

// Tiles returns a snapshot of the live tiles.
func (r *Registry) Tiles() []*Node {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tiles := make([]*Node, 0, len(r.tiles))
	for _, n := range r.tiles {
		tiles = append(tiles, n)
	}
	return tiles
}
