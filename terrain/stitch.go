package terrain

import "github.com/tellusmaps/terrastream/tile"

// notifyOfArrival runs when a tile at the same level registers next to
// this one. East and south neighbors matter: their edge texels feed this
// tile's normal map.
func (n *Node) notifyOfArrival(that *Node) {
	if n.empty || that.empty {
		return
	}

	if east, ok := n.key.Neighbor(1, 0); ok && east == that.key {
		n.updateNormalMap()
	}
	if south, ok := n.key.Neighbor(0, 1); ok && south == that.key {
		n.updateNormalMap()
	}
}

// updateNormalMap copies the east neighbor's west column and the south
// neighbor's north row into this tile's normal raster so shading is
// seamless across the boundary. Copying beats averaging: each raster is
// touched once and the visual difference is negligible.
//
// Stitching only applies between authoritative rasters of equal size;
// anything else silently skips the edge.
func (n *Node) updateNormalMap() {
	if !n.ctx.Options.StitchNormalMaps {
		return
	}

	normal := n.model.Normal()
	if !normal.Owned || !normal.Valid() || normal.Texture.Raster == nil {
		return
	}
	this := normal.Texture.Raster

	if key, ok := n.key.Neighbor(1, 0); ok {
		if east, ok := n.ctx.Registry.Get(key); ok && !east.empty {
			if that := east.authoritativeNormalRaster(); that != nil &&
				that.Width == this.Width && that.Height == this.Height {
				for y := 0; y < this.Height; y++ {
					this.Set(this.Width-1, y, that.At(0, y))
				}
			}
		}
	}

	if key, ok := n.key.Neighbor(0, 1); ok {
		if south, ok := n.ctx.Registry.Get(key); ok && !south.empty {
			if that := south.authoritativeNormalRaster(); that != nil &&
				that.Width == this.Width && that.Height == this.Height {
				for x := 0; x < this.Width; x++ {
					this.Set(x, 0, that.At(x, this.Height-1))
				}
			}
		}
	}
}

func (n *Node) authoritativeNormalRaster() *tile.Raster {
	normal := n.model.Normal()
	if !normal.Owned || !normal.Valid() {
		return nil
	}
	return normal.Texture.Raster
}
