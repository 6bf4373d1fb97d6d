package stream

import (
	"context"
	"math"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/tellusmaps/terrastream/featureflag"
	"github.com/tellusmaps/terrastream/loader"
	"github.com/tellusmaps/terrastream/terrain"
	"github.com/tellusmaps/terrastream/tile"
	"golang.org/x/net/websocket"
)

// ViewerHandler serves one viewer: it owns a view-dependent terrain engine
// and streams the tile events its frames produce. All handler methods run
// on the connection's handling goroutine.
type ViewerHandler struct {
	// The fetcher backing this viewer's tile loads.
	Fetcher loader.Fetcher

	// The terrain configuration shared by all viewers.
	Options  terrain.Options
	Bindings tile.Bindings

	// The interval between terrain frames.
	Frames time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	FeatureFlags featureflag.FeatureFlag

	// The generator handing out viewer ids.
	IDs *SequentialIDGenerator

	conn        *websocket.Conn
	engine      *terrain.Engine
	events      []Msg
	viewerID    uint32
	sessionUUID string
	viewpoint   mgl64.Vec3
	lodScale    float64
	tracking    bool
}

func (h *ViewerHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn
	if h.IDs == nil {
		h.IDs = &SequentialIDGenerator{}
	}
	h.viewerID = h.IDs.New()
	h.sessionUUID = uuid.NewString()
	h.lodScale = 1
}

func (h *ViewerHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req PingRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(Msg{
		Type: MsgTypePingResponse,
		Data: mustEncode(PingResponse{RequestID: req.RequestID}),
	})
	return nil
}

func (h *ViewerHandler) HandleViewpoint(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ViewpointUpdate
	if err := msg.DataTo(&req); err != nil {
		respond.Send(Msg{Type: MsgTypeError, Data: mustEncode(ErrorResponse{
			Code: ErrorCodeBadRequest,
		})})
		return nil
	}

	h.viewpoint = mgl64.Vec3{req.X, req.Y, req.Z}
	if req.LODScale > 0 {
		h.lodScale = req.LODScale
	}

	if h.engine == nil {
		if err := h.startEngine(ctx, respond); err != nil {
			return err
		}
	}

	h.tracking = true
	return nil
}

func (h *ViewerHandler) HandleLayerRefresh(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req LayerRefresh
	if err := msg.DataTo(&req); err != nil {
		respond.Send(Msg{Type: MsgTypeError, Data: mustEncode(ErrorResponse{
			Code: ErrorCodeBadRequest,
		})})
		return nil
	}

	if h.engine == nil {
		return nil
	}

	var layers tile.LayerSet
	if len(req.Layers) > 0 {
		layers = tile.NewLayerSet()
		for _, l := range req.Layers {
			layers.Add(tile.LayerID(l))
		}
	}

	h.engine.RefreshLayers(layers)
	return nil
}

// HandleFrame runs one traversal for the current viewpoint and pushes the
// events it produced. Before the first viewpoint arrives there is nothing
// to do.
func (h *ViewerHandler) HandleFrame(ctx context.Context, respond ResponseSender) error {
	if h.engine == nil || !h.tracking {
		return nil
	}

	sum := h.engine.Frame(&terrain.FrameState{
		Viewpoint: h.viewpoint,
		LODScale:  h.lodScale,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableTileEvents, func() {
		for _, ev := range h.events {
			respond.Send(ev)
		}
	})
	h.events = h.events[:0]

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableFrameSummaries, func() {
		respond.Send(Msg{Type: MsgTypeFrameSummary, Data: mustEncode(FrameSummary{
			Frame:     sum.Frame,
			Drawn:     len(sum.Drawn),
			Merged:    sum.Merged,
			Evicted:   sum.Evicted,
			TileCount: h.engine.Registry().Count(),
		})})
	})

	return nil
}

func (h *ViewerHandler) HandleDisconnect(error) {
	if h.IDs != nil && h.viewerID != 0 {
		h.IDs.Reuse(h.viewerID)
	}
}

func (h *ViewerHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(h.conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := msg.decode(data); err != nil {
			return Msg{}, len(data), err
		}
		return msg, len(data), nil
	}
}

func (h *ViewerHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		data, err := msg.encode()
		if err != nil {
			return 0, err
		}

		if err := websocket.Message.Send(h.conn, data); err != nil {
			return 0, err
		}
		return len(data), nil
	}
}

func (h *ViewerHandler) Close() {}

func (h *ViewerHandler) FrameInterval() time.Duration {
	if h.Frames <= 0 {
		return time.Second / 30
	}
	return h.Frames
}

func (h *ViewerHandler) IdleTimeout() time.Duration {
	if h.ClientIdleTimeout <= 0 {
		return 5 * time.Minute
	}
	return h.ClientIdleTimeout
}

func (h *ViewerHandler) ViewerID() uint32 {
	return h.viewerID
}

// startEngine builds this viewer's terrain on first use. Tile events are
// collected by the notifier and flushed at frame boundaries, so they reach
// the send queue in traversal order.
func (h *ViewerHandler) startEngine(ctx context.Context, respond ResponseSender) error {
	opts := h.Options
	h.FeatureFlags.IfSet(featureflag.FlagDisableNormalStitching, func() {
		opts.StitchNormalMaps = false
	})
	h.FeatureFlags.IfSet(featureflag.FlagDisableDormancySweeps, func() {
		// Tiles that never reach their expiry time never become dormant.
		opts.MinExpiryTime = math.MaxInt64
	})

	engine, err := terrain.NewEngine(ctx, terrain.Config{
		Options:  opts,
		Bindings: h.Bindings,
		Fetcher:  h.Fetcher,
		Notifier: terrain.NotifierFuncs{
			OnTileAdded: func(key tile.Key, n *terrain.Node) {
				h.events = append(h.events, Msg{
					Type: MsgTypeTileAdded,
					Data: mustEncode(TileEvent{Key: keyToWire(key)}),
				})
			},
			OnTileDataChanged: func(key tile.Key, n *terrain.Node) {
				h.events = append(h.events, Msg{
					Type: MsgTypeTileChanged,
					Data: mustEncode(TileEvent{Key: keyToWire(key)}),
				})
			},
			OnTileRemoved: func(key tile.Key) {
				h.events = append(h.events, Msg{
					Type: MsgTypeTileRemoved,
					Data: mustEncode(TileEvent{Key: keyToWire(key)}),
				})
			},
		},
	})
	if err != nil {
		return errors.New("starting viewer terrain failed").
			WithTag("viewer_id", h.viewerID).
			Wrap(err)
	}
	h.engine = engine

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableSessionState, func() {
		respond.Send(Msg{Type: MsgTypeSessionState, Data: mustEncode(SessionState{
			ViewerID:    h.viewerID,
			SessionUUID: h.sessionUUID,
			MaxLOD:      engine.Options().MaxLOD,
		})})
	})

	return nil
}
