package terrain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	terrainTileCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "terrain_tile_count",
		Help: "The number of live tiles.",
	})

	terrainTileCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrain_tile_count_total",
		Help: "The total number of tiles created.",
	})

	terrainTilesEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrain_tiles_evicted_total",
		Help: "The total number of tiles destroyed by eviction sweeps.",
	})

	terrainMergesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrain_merges_total",
		Help: "The total number of tile data models merged.",
	})

	terrainStaleResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrain_stale_results_total",
		Help: "The total number of load results dropped because the owning tile was gone or re-created.",
	})

	terrainEmptyTilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrain_empty_tiles_total",
		Help: "The total number of tiles constructed fully masked out.",
	})
)

func instrumentIncreaseTileGauge() {
	terrainTileCount.Inc()
}

func instrumentDecreaseTileGauge() {
	terrainTileCount.Dec()
}

func instrumentCountTile() {
	terrainTileCountTotal.Inc()
}

func instrumentEviction() {
	terrainTilesEvictedTotal.Inc()
}

func instrumentMerge() {
	terrainMergesTotal.Inc()
}

func instrumentStaleResult() {
	terrainStaleResultsTotal.Inc()
}

func instrumentEmptyTile() {
	terrainEmptyTilesTotal.Inc()
}
