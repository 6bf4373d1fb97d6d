// Package smoketest exercises a running server end to end: it connects as
// a regular viewer, streams tiles around a fixed viewpoint and reports
// whether data flowed.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"github.com/tellusmaps/terrastream/stream"
	"golang.org/x/net/websocket"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// SmokeTestRequest asks a server to smoke test an endpoint, usually its
// own public one.
type SmokeTestRequest struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

// SmokeTestResults reports what the test viewer observed.
type SmokeTestResults struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	LatencyMilliSec float64 `json:"latency_ms"`
	TileCount       int     `json:"tile_count"`
	FramesObserved  int     `json:"frames_observed"`
	MergesObserved  int     `json:"merges_observed"`
	Status          Status  `json:"status"`
	Error           string  `json:"error,omitempty"`
}

type Options struct {
	Endpoint   string
	UserAgent  string
	SendResult func(context.Context, SmokeTestResults) error
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest runs the smoke test in the background and reports the
// results through Options.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading body failed", http.StatusInternalServerError)
			return
		}

		var req SmokeTestRequest
		if err := json.Unmarshal(b, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		go func() {
			defer func() {
				// if context is of testContext
				// cancel context on exit to signal function exited
				// this is used for testing
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := RunSmokeTest(ctx, RunSmokeTestOptions{
				FromEndpoint: opts.Endpoint,
				ToEndpoint:   req.Endpoint,
				UserAgent:    opts.UserAgent,
				Timeout:      req.Timeout,
			})
			if err != nil {
				logs.Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

type RunSmokeTestOptions struct {
	FromEndpoint string
	ToEndpoint   string
	UserAgent    string
	Timeout      time.Duration
}

// RunSmokeTest connects to the target endpoint as a viewer, pushes a
// viewpoint onto the terrain and waits for tiles to stream back.
func RunSmokeTest(ctx context.Context, opts RunSmokeTestOptions) (SmokeTestResults, error) {
	res := SmokeTestResults{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
		Status:       StatusFailed,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	conn, err := dial(opts.ToEndpoint, opts.FromEndpoint, opts.UserAgent)
	if err != nil {
		err = errors.New("dialing endpoint failed").
			WithTag("endpoint", opts.ToEndpoint).
			Wrap(err)
		res.Error = err.Error()
		return res, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	pingStart := time.Now()
	if err := send(conn, stream.MsgTypePingRequest, stream.PingRequest{RequestID: 1}); err != nil {
		res.Error = err.Error()
		return res, err
	}
	if err := send(conn, stream.MsgTypeViewpointUpdate, stream.ViewpointUpdate{
		X: 0.75,
		Y: 0.75,
	}); err != nil {
		res.Error = err.Error()
		return res, err
	}

	var (
		gotPong    bool
		gotSession bool
	)

	for ctx.Err() == nil {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			err = errors.New("receiving message failed").Wrap(err)
			res.Error = err.Error()
			return res, err
		}

		var msg stream.Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			err = errors.New("decoding message failed").Wrap(err)
			res.Error = err.Error()
			return res, err
		}

		switch msg.Type {
		case stream.MsgTypePingResponse:
			gotPong = true
			res.LatencyMilliSec = float64(time.Since(pingStart).Milliseconds())

		case stream.MsgTypeSessionState:
			gotSession = true

		case stream.MsgTypeFrameSummary:
			var sum stream.FrameSummary
			if err := msg.DataTo(&sum); err != nil {
				res.Error = err.Error()
				return res, err
			}

			res.FramesObserved++
			res.MergesObserved += sum.Merged
			res.TileCount = sum.TileCount
		}

		// The stream is healthy once the round trip completed, the
		// session greeted us and tile data actually merged.
		if gotPong && gotSession && res.MergesObserved > 0 && res.TileCount > 1 {
			res.Status = StatusSuccess
			return res, nil
		}
	}

	err = errors.New("smoke test aborted").Wrap(ctx.Err())
	res.Error = err.Error()
	return res, err
}

func dial(endpoint, origin, userAgent string) (*websocket.Conn, error) {
	wsEndpoint := strings.Replace(endpoint, "http", "ws", 1)
	if origin == "" {
		origin = endpoint
	}

	config, err := websocket.NewConfig(wsEndpoint, origin)
	if err != nil {
		return nil, errors.New("configuring web socket failed").
			WithTag("endpoint", wsEndpoint).
			Wrap(err)
	}
	if userAgent != "" {
		config.Header.Set("User-Agent", userAgent)
	}

	return websocket.DialConfig(config)
}

func send(conn *websocket.Conn, t stream.MsgType, v any) error {
	msg, err := stream.NewMsg(t, v)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return errors.New("encoding message failed").Wrap(err)
	}

	if err := websocket.Message.Send(conn, data); err != nil {
		return errors.New("sending message failed").Wrap(err)
	}
	return nil
}
