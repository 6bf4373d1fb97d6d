package stream

import "sync"

// SequentialIDGenerator hands out viewer ids. Ids released by disconnected
// viewers are recycled before the sequence grows, keeping ids small and
// log-friendly on long-lived servers.
type SequentialIDGenerator struct {
	mutex  sync.Mutex
	lastID uint32
	free   []uint32
}

// New returns the next viewer id, preferring a recycled one.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if n := len(g.free); n != 0 {
		id := g.free[n-1]
		g.free = g.free[:n-1]
		return id
	}

	g.lastID++
	return g.lastID
}

// Reuse returns a viewer id to the pool once its viewer is gone.
func (g *SequentialIDGenerator) Reuse(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.free = append(g.free, id)
}
