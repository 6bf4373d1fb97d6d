package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"github.com/tellusmaps/terrastream/featureflag"
	"github.com/tellusmaps/terrastream/fetch"
	terrahttp "github.com/tellusmaps/terrastream/http"
	"github.com/tellusmaps/terrastream/smoketest"
	"github.com/tellusmaps/terrastream/stream"
	"github.com/tellusmaps/terrastream/terrain"
	"github.com/tellusmaps/terrastream/tile"
	"golang.org/x/net/websocket"
)

var (
	// The Terrastream version number. Set at build.
	version = "v0.3.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "terrastream_info",
		Help:        "Terrastream information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"TERRASTREAM_ADDR"                 help:"Listening address for viewer connections."`
	AdminAddr          string        `cli:""        env:"TERRASTREAM_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"TERRASTREAM_PUBLIC_ENDPOINT"      help:"The public endpoint where this Terrastream server is reachable."`
	LogLevel           string        `cli:""        env:"TERRASTREAM_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"TERRASTREAM_LOG_INDENT"           help:"Indent logs."`
	FrameInterval      time.Duration `cli:",hidden" env:"TERRASTREAM_FRAME_INTERVAL"       help:"The interval between terrain frames for each viewer."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"TERRASTREAM_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle viewer will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"TERRASTREAM_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	Terrain            terrainConfig `cli:",hidden" env:"-"                                help:"Terrain engine configuration."`
	Source             sourceConfig  `cli:",hidden" env:"-"                                help:"Tile source configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                                help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"TERRASTREAM_FEATURE_FLAGS"        help:"Comma separated feature flags."`
	Version            bool          `cli:""        env:"-"                                help:"Show version."`
	Help               bool          `cli:""        env:"-"                                help:"Show help."`
}

type terrainConfig struct {
	TileSize            int           `cli:",hidden" env:"TERRASTREAM_TERRAIN_TILE_SIZE"             help:"Vertices along one edge of a tile's surface geometry."`
	MaxLOD              uint32        `cli:",hidden" env:"TERRASTREAM_TERRAIN_MAX_LOD"               help:"The deepest level tiles may subdivide to."`
	VisibilityRange     float64       `cli:",hidden" env:"TERRASTREAM_TERRAIN_VISIBILITY_RANGE"      help:"The distance at which level-0 tiles are visible."`
	RangeFactor         float64       `cli:",hidden" env:"TERRASTREAM_TERRAIN_RANGE_FACTOR"          help:"The visibility range ratio between consecutive levels."`
	MinExpiryTime       time.Duration `cli:",hidden" env:"TERRASTREAM_TERRAIN_MIN_EXPIRY_TIME"       help:"The wall time a tile must go unvisited before it may be evicted."`
	Progressive         bool          `cli:",hidden" env:"TERRASTREAM_TERRAIN_PROGRESSIVE"           help:"Suppress subdivision under tiles whose own data has not arrived."`
	HighResolutionFirst bool          `cli:",hidden" env:"TERRASTREAM_TERRAIN_HIGH_RESOLUTION_FIRST" help:"Load deeper tiles before shallower ones."`
	StitchNormalMaps    bool          `cli:",hidden" env:"TERRASTREAM_TERRAIN_STITCH_NORMAL_MAPS"    help:"Stitch normal map edges between neighboring tiles."`
	Workers             int           `cli:",hidden" env:"TERRASTREAM_TERRAIN_WORKERS"               help:"The size of each viewer's background loading pool."`
}

type sourceConfig struct {
	Layers     int           `cli:",hidden" env:"TERRASTREAM_SOURCE_LAYERS"      help:"The number of synthetic color layers."`
	RasterSize int           `cli:",hidden" env:"TERRASTREAM_SOURCE_RASTER_SIZE" help:"The edge length of synthesized rasters."`
	Elevation  bool          `cli:",hidden" env:"TERRASTREAM_SOURCE_ELEVATION"   help:"Synthesize an elevation channel."`
	Normals    bool          `cli:",hidden" env:"TERRASTREAM_SOURCE_NORMALS"     help:"Synthesize a normal map channel."`
	Latency    time.Duration `cli:",hidden" env:"TERRASTREAM_SOURCE_LATENCY"     help:"Artificial latency added to each fetch."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"TERRASTREAM_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"TERRASTREAM_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"TERRASTREAM_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"TERRASTREAM_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		FrameInterval:      time.Second / 30,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		Terrain: terrainConfig{
			MaxLOD:              12,
			Progressive:         true,
			HighResolutionFirst: false,
			StitchNormalMaps:    true,
		},
		Source: sourceConfig{
			Layers:    1,
			Elevation: true,
			Normals:   true,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Terrastream server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "terrastream",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)

	fetcher := &fetch.Synthetic{
		Layers:     sourceLayers(conf.Source.Layers),
		RasterSize: conf.Source.RasterSize,
		Elevation:  conf.Source.Elevation,
		Normals:    conf.Source.Normals,
		Latency:    conf.Source.Latency,
	}

	terrainOpts := terrain.Options{
		TileSize:            conf.Terrain.TileSize,
		MaxLOD:              conf.Terrain.MaxLOD,
		VisibilityRange:     conf.Terrain.VisibilityRange,
		RangeFactor:         conf.Terrain.RangeFactor,
		MinExpiryTime:       conf.Terrain.MinExpiryTime,
		Progressive:         conf.Terrain.Progressive,
		HighResolutionFirst: conf.Terrain.HighResolutionFirst,
		StitchNormalMaps:    conf.Terrain.StitchNormalMaps,
		Workers:             conf.Terrain.Workers,
	}

	viewerIDs := &stream.SequentialIDGenerator{}

	var service http.ServeMux

	service.Handle("/", terrahttp.HandleWithCORS(websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var vh stream.Handler = &stream.ViewerHandler{
				Fetcher:           fetcher,
				Options:           terrainOpts,
				Frames:            conf.FrameInterval,
				ClientIdleTimeout: conf.ClientIdleTimeout,
				FeatureFlags:      flags,
				IDs:               viewerIDs,
			}
			h := stream.HandlerWithLogs(vh, conf.LogSummaryInterval)
			h = stream.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			stream.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	service.Handle("/health", terrahttp.HandleWithCORS(http.HandlerFunc(terrahttp.HandleHealthCheck)))
	service.Handle("/ready", terrahttp.HandleWithCORS(terrahttp.HandleReadyCheck(func() bool { return true })))
	service.Handle("/version", terrahttp.HandleWithCORS(terrahttp.HandleVersion(version)))

	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Terrastream %s", version),
		SendResult: func(ctx context.Context, res smoketest.SmokeTestResults) error {
			logs.WithTag("to_endpoint", res.ToEndpoint).
				WithTag("status", res.Status).
				WithTag("latency_ms", res.LatencyMilliSec).
				WithTag("tile_count", res.TileCount).
				Info("smoke test completed")
			return nil
		},
	}))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", terrahttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("max_lod", conf.Terrain.MaxLOD).
		WithTag("feature_flags", flags.Strings()).
		Info("starting terrastream server")

	terrahttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			terrahttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func sourceLayers(count int) []tile.LayerID {
	layers := make([]tile.LayerID, 0, count)
	for i := 0; i < count; i++ {
		layers = append(layers, tile.LayerID(i+1))
	}
	return layers
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.Source.Layers <= 0 {
		return errors.New("at least one source layer is required").
			WithTag("layers", conf.Source.Layers)
	}

	return nil
}
