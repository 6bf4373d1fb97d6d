package terrain

import "github.com/tellusmaps/terrastream/tile"

// Notifier receives tile lifecycle notifications, consumed by external
// render-state caches and streaming sessions.
type Notifier interface {
	// TileAdded fires when a tile registers in the live-tile registry.
	TileAdded(key tile.Key, n *Node)

	// TileDataChanged fires when a merge brings new elevation data.
	TileDataChanged(key tile.Key, n *Node)

	// TileRemoved fires when an evicted tile leaves the registry.
	TileRemoved(key tile.Key)
}

// NotifierFuncs adapts plain functions to the Notifier interface. Nil
// fields are skipped.
type NotifierFuncs struct {
	OnTileAdded       func(key tile.Key, n *Node)
	OnTileDataChanged func(key tile.Key, n *Node)
	OnTileRemoved     func(key tile.Key)
}

func (f NotifierFuncs) TileAdded(key tile.Key, n *Node) {
	if f.OnTileAdded != nil {
		f.OnTileAdded(key, n)
	}
}

func (f NotifierFuncs) TileDataChanged(key tile.Key, n *Node) {
	if f.OnTileDataChanged != nil {
		f.OnTileDataChanged(key, n)
	}
}

func (f NotifierFuncs) TileRemoved(key tile.Key) {
	if f.OnTileRemoved != nil {
		f.OnTileRemoved(key)
	}
}
