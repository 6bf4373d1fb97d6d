// Package fetch provides a synthetic tile fetcher producing deterministic
// procedural rasters. It backs the demo daemon, the smoke test and local
// development, where no real imagery/elevation source is wired up.
package fetch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tellusmaps/terrastream/tile"
)

const defaultRasterSize = 16

// Synthetic fetches procedurally generated tile data. Safe for concurrent
// use by loader workers.
type Synthetic struct {
	// Layers are the color layers to synthesize.
	Layers []tile.LayerID

	// RasterSize is the edge length of generated rasters.
	RasterSize int

	// Elevation and Normals toggle the shared channels.
	Elevation bool
	Normals   bool

	// Latency simulates fetch time.
	Latency time.Duration
}

func (s *Synthetic) Fetch(ctx context.Context, key tile.Key, filter tile.LayerSet) (*tile.Model, error) {
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	size := s.RasterSize
	if size <= 0 {
		size = defaultRasterSize
	}

	model := &tile.Model{Key: key}

	for _, layer := range s.Layers {
		if !filter.Contains(layer) {
			continue
		}
		model.ColorLayers = append(model.ColorLayers, tile.ColorLayer{
			Layer:   layer,
			Kind:    tile.ColorLayerImage,
			Texture: colorTexture(key, layer, size),
			Matrix:  mgl32.Ident4(),
		})
	}

	if s.Elevation {
		model.Elevation = &tile.ElevationLayer{Texture: elevationTexture(key, size)}
	}
	if s.Normals {
		model.Normal = &tile.NormalLayer{Texture: normalTexture(key, size)}
	}

	return model, nil
}

// colorTexture fills a quadrant-hued gradient so inherited sub-regions are
// visually distinguishable from a tile's own data.
func colorTexture(key tile.Key, layer tile.LayerID, size int) *tile.Texture {
	raster := tile.NewRaster(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			raster.Set(x, y, mgl32.Vec4{
				float32(x) / float32(size-1),
				float32(y) / float32(size-1),
				float32(key.LOD) / 32,
				1,
			})
		}
	}
	return tile.NewTexture(fmt.Sprintf("color-%d-%s", layer, key), raster)
}

func elevationTexture(key tile.Key, size int) *tile.Texture {
	n := float64(uint64(1) << key.LOD)
	raster := tile.NewRaster(size, size)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			// World-space coordinates of the texel.
			wx := (float64(key.X) + float64(x)/float64(size-1)) / n
			wy := (float64(key.Y) + float64(y)/float64(size-1)) / n

			h := math.Sin(wx*7*math.Pi) * math.Cos(wy*5*math.Pi) * 0.1
			raster.Set(x, y, mgl32.Vec4{float32(h), 0, 0, 1})
		}
	}
	return tile.NewTexture(fmt.Sprintf("elevation-%s", key), raster)
}

func normalTexture(key tile.Key, size int) *tile.Texture {
	raster := tile.NewRaster(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			raster.Set(x, y, mgl32.Vec4{0.5, 0.5, 1, 1})
		}
	}
	return tile.NewTexture(fmt.Sprintf("normal-%s", key), raster)
}
