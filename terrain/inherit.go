package terrain

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tellusmaps/terrastream/tile"
)

// merge folds a completed load into this node's render model. Every layer
// in the model becomes this tile's own data (identity matrix, owned);
// layers absent from the model stay inherited. Runs on the traversal
// thread only.
func (n *Node) merge(model *tile.Model) {
	newElevationData := false

	for _, layer := range model.ColorLayers {
		switch layer.Kind {
		case tile.ColorLayerImage:
			if layer.Texture == nil {
				continue
			}

			pass := n.model.Pass(layer.Layer)
			if pass == nil {
				pass = n.model.AddPass(layer.Layer)

				// A pass that first shows up at this level has no parent
				// color to fade from; seed the parent channel with its own
				// texture.
				if n.ctx.Bindings.ColorParent {
					pass.ColorParent.SetOwned(layer.Texture)
				}
			}
			pass.Color.SetOwnedMatrix(layer.Texture, layer.Matrix)

		case tile.ColorLayerOther:
			if n.model.Pass(layer.Layer) == nil {
				n.model.AddPass(layer.Layer)
			}
		}
	}

	if model.Elevation != nil && model.Elevation.Texture != nil {
		n.model.Elevation().SetOwned(model.Elevation.Texture)
		n.surface.SetElevationRaster(model.Elevation.Texture.Raster, mgl32.Ident4())
		newElevationData = true
	}

	if model.Normal != nil && model.Normal.Texture != nil {
		n.model.Normal().SetOwned(model.Normal.Texture)
		n.updateNormalMap()
	}

	for _, layer := range model.Shared {
		idx, ok := n.ctx.Bindings.SharedIndex(layer.Layer)
		if !ok {
			continue
		}
		n.model.Shared[idx].SetOwned(layer.Texture)
	}

	n.setDirty(false)
	instrumentMerge()

	if n.childrenReady.Load() {
		for _, c := range n.children {
			c.refreshInheritedData(n)
		}
	}

	if newElevationData {
		logs.WithTag("key", n.key.String()).Debug("tile data changed")
		n.ctx.Notifier.TileDataChanged(n.key, n)
	}
}

// refreshInheritedData re-inherits textures and matrices from the parent.
// When a tile receives new data via merge, descendants still displaying
// inherited data must refresh, and their descendants in turn. The walk
// stops at the first node where nothing changed: samplers already
// overwritten by that node's own merge inherit nothing, so the subtree
// below has converged.
func (n *Node) refreshInheritedData(parent *Node) {
	if n.empty {
		return
	}

	q := n.key.Quadrant()
	changes := 0

	for i := range parent.model.Passes {
		parentPass := &parent.model.Passes[i]

		pass := n.model.Pass(parentPass.Layer)
		if pass == nil {
			// Pass exists in the parent but not here; add it wholesale.
			pass = n.model.AddPass(parentPass.Layer)
			pass.Color.Inherit(parentPass.Color, q)
			if n.ctx.Bindings.ColorParent {
				pass.ColorParent.Inherit(parentPass.Color, q)
			}
			changes++
			continue
		}

		// The parent-color channel always derives from the parent's
		// current color, falling back to this tile's own color when the
		// parent has none.
		if n.ctx.Bindings.ColorParent {
			if parentPass.Color.Valid() {
				next := parentPass.Color.Matrix.Mul4(tile.ScaleBias(q))
				if pass.ColorParent.Texture != parentPass.Color.Texture || pass.ColorParent.Matrix != next {
					pass.ColorParent.Inherit(parentPass.Color, q)
					changes++
				}
			} else if pass.ColorParent.Texture != pass.Color.Texture || pass.ColorParent.Matrix != pass.Color.Matrix {
				pass.ColorParent.Derive(pass.Color)
				changes++
			}
		}

		// All other samplers re-inherit unless this tile's own merge made
		// them authoritative. Only a real difference counts as a change,
		// otherwise the recursion below would never converge.
		if !pass.Color.Owned || !pass.Color.Valid() {
			next := parentPass.Color.Matrix.Mul4(tile.ScaleBias(q))
			if pass.Color.Texture != parentPass.Color.Texture || pass.Color.Matrix != next {
				pass.Color.Inherit(parentPass.Color, q)
				changes++
			}
		}
	}

	for s := range n.model.Shared {
		sampler := &n.model.Shared[s]
		if sampler.Owned && sampler.Valid() {
			continue
		}

		parentSampler := parent.model.Shared[s]
		next := parentSampler.Matrix.Mul4(tile.ScaleBias(q))
		if sampler.Texture == parentSampler.Texture && sampler.Matrix == next {
			continue
		}

		sampler.Inherit(parentSampler, q)
		changes++

		if s == tile.SharedElevation && sampler.Valid() && sampler.Texture.Raster != nil {
			n.surface.SetElevationRaster(sampler.Texture.Raster, sampler.Matrix)
		}
	}

	if changes == 0 {
		return
	}

	if n.childrenReady.Load() {
		for _, c := range n.children {
			c.refreshInheritedData(n)
		}
	}
}
