package terrain

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"github.com/tellusmaps/terrastream/loader"
	"github.com/tellusmaps/terrastream/tile"
)

type fetcherFunc func(ctx context.Context, key tile.Key, filter tile.LayerSet) (*tile.Model, error)

func (f fetcherFunc) Fetch(ctx context.Context, key tile.Key, filter tile.LayerSet) (*tile.Model, error) {
	return f(ctx, key, filter)
}

// blockingFetcher parks loader workers until the engine context ends, which
// keeps tests that drive merges by hand free of background interference.
var blockingFetcher = fetcherFunc(func(ctx context.Context, key tile.Key, filter tile.LayerSet) (*tile.Model, error) {
	<-ctx.Done()
	return nil, ctx.Err()
})

func testOptions() Options {
	return Options{
		MaxLOD:            4,
		MinExpiryFrames:   5,
		MinExpiryTime:     time.Millisecond,
		StitchNormalMaps:  true,
		Workers:           1,
		ExpirySweepFrames: 16,
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()

	if cfg.Fetcher == nil {
		cfg.Fetcher = blockingFetcher
	}
	if cfg.Options == (Options{}) {
		cfg.Options = testOptions()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	e, err := NewEngine(ctx, cfg)
	require.NoError(t, err)
	return e
}

func testTexture(name string, size int) *tile.Texture {
	return tile.NewTexture(name, tile.NewRaster(size, size))
}

func colorModel(key tile.Key, layer tile.LayerID, textureName string) *tile.Model {
	return &tile.Model{
		Key: key,
		ColorLayers: []tile.ColorLayer{{
			Layer:   layer,
			Kind:    tile.ColorLayerImage,
			Texture: testTexture(textureName, 4),
			Matrix:  mgl32.Ident4(),
		}},
	}
}

var _ loader.Fetcher = fetcherFunc(nil)
