package terrain

import (
	"github.com/tellusmaps/terrastream/loader"
	"github.com/tellusmaps/terrastream/tile"
)

// Context bundles the collaborators shared by every tile in one terrain.
// It is constructed once by the engine and passed to tiles at creation.
type Context struct {
	Options   Options
	Bindings  tile.Bindings
	Registry  *Registry
	Loader    *loader.Service
	Geometry  GeometryPool
	Notifier  Notifier
	Selection *SelectionInfo
}
