package terrain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/tellusmaps/terrastream/loader"
	"github.com/tellusmaps/terrastream/tile"
)

// Config assembles an engine's collaborators. Fetcher is required; the
// other collaborators default to in-package implementations.
type Config struct {
	Options  Options
	Bindings tile.Bindings
	Fetcher  loader.Fetcher
	Geometry GeometryPool
	Notifier Notifier
}

// Engine owns one terrain: the quadtree root, the live-tile registry and
// the streaming loader. Frame must be driven from a single traversal
// goroutine; the loader's workers run concurrently but their results are
// only merged inside Frame.
type Engine struct {
	ctx    *Context
	loader *loader.Service
	root   *Node
	frames atomic.Uint64
}

// FrameSummary reports what one frame did.
type FrameSummary struct {
	Frame   uint64
	Visible bool
	Merged  int
	Evicted int
	Drawn   []*Node
}

func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("terrain engine requires a fetcher")
	}

	cfg.Options.Normalize()

	if cfg.Geometry == nil {
		cfg.Geometry = PlaneGeometryPool{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NotifierFuncs{}
	}

	ld := loader.NewService(cfg.Fetcher, cfg.Options.Workers)
	ld.Start(ctx)

	ectx := &Context{
		Options:   cfg.Options,
		Bindings:  cfg.Bindings,
		Registry:  NewRegistry(),
		Loader:    ld,
		Geometry:  cfg.Geometry,
		Notifier:  cfg.Notifier,
		Selection: NewSelectionInfo(cfg.Options),
	}

	e := &Engine{
		ctx:    ectx,
		loader: ld,
		root:   newNode(tile.Key{}, nil, ectx),
	}

	logs.WithTag("max_lod", cfg.Options.MaxLOD).
		WithTag("workers", cfg.Options.Workers).
		Debug("terrain engine started")
	return e, nil
}

func (e *Engine) Root() *Node { return e.root }

func (e *Engine) Registry() *Registry { return e.ctx.Registry }

func (e *Engine) Options() Options { return e.ctx.Options }

// Frame runs one traversal: completed loads merge first (on this
// goroutine, never concurrently with traversal), then the tree is visited,
// then, on the sweep cadence, dormant subtrees collapse.
func (e *Engine) Frame(fs *FrameState) *FrameSummary {
	if fs == nil {
		fs = &FrameState{}
	}
	fs.normalize()
	if fs.Frame == 0 {
		fs.Frame = e.frames.Add(1)
	}

	merged := e.loader.MergeCompleted(e.applyResult)

	visible := e.root.Visit(fs)

	evicted := 0
	if fs.Camera == CameraPrimary && fs.Frame%e.ctx.Options.ExpirySweepFrames == 0 {
		evicted = e.ExpireDormantTiles(fs.Frame, fs.Time)
	}

	return &FrameSummary{
		Frame:   fs.Frame,
		Visible: visible,
		Merged:  merged,
		Evicted: evicted,
		Drawn:   fs.Drawn(),
	}
}

// applyResult merges one completed load into its owning tile. The
// generation check is the liveness token: a tile evicted (or evicted and
// re-created) between submission and completion must never receive stale
// results.
func (e *Engine) applyResult(r *loader.Request, model *tile.Model) {
	n, ok := e.ctx.Registry.Get(r.Key)
	if !ok || n.generation != r.Generation || n.destroyed {
		instrumentStaleResult()
		return
	}

	if model.Empty() {
		// Fetch produced nothing; the tile stays dirty and retries on its
		// next load-eligible visit.
		logs.WithTag("key", r.Key.String()).Debug("tile load returned no data")
		return
	}

	n.merge(model)
}

// ExpireDormantTiles walks the live registry and collapses every sibling
// group whose four children are simultaneously dormant. Runs outside the
// render-critical traversal.
func (e *Engine) ExpireDormantTiles(frame uint64, now time.Time) int {
	evicted := 0

	for _, n := range e.ctx.Registry.Tiles() {
		if n.destroyed {
			continue
		}
		if n.areSubTilesDormant(frame, now) {
			before := e.ctx.Registry.Count()
			n.removeSubTiles()
			evicted += before - e.ctx.Registry.Count()
		}
	}

	if evicted > 0 {
		logs.WithTag("evicted", evicted).Debug("collapsed dormant subtrees")
	}
	return evicted
}

// RefreshLayers marks every live tile dirty for the given layers only, so
// the next loads re-fetch just what changed.
func (e *Engine) RefreshLayers(layers tile.LayerSet) {
	for _, n := range e.ctx.Registry.Tiles() {
		n.MarkDirty(layers)
	}
}
