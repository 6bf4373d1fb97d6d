package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"github.com/tellusmaps/terrastream/fetch"
	"github.com/tellusmaps/terrastream/stream"
	"github.com/tellusmaps/terrastream/terrain"
	"github.com/tellusmaps/terrastream/tile"
	"golang.org/x/net/websocket"
)

// startTestServer runs a viewer endpoint for smoke tests to dial. The
// returned channel carries the handshake user agent of each viewer.
func startTestServer(t *testing.T, ctx context.Context) (*httptest.Server, chan string) {
	t.Helper()

	userAgents := make(chan string, 8)
	ids := &stream.SequentialIDGenerator{}
	server := httptest.NewServer(websocket.Server{
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			if req := conn.Request(); req != nil {
				select {
				case userAgents <- req.UserAgent():
				default:
				}
			}

			h := &stream.ViewerHandler{
				Fetcher: &fetch.Synthetic{
					Layers:    []tile.LayerID{1},
					Elevation: true,
				},
				Options: terrain.Options{
					MaxLOD:  3,
					Workers: 2,
				},
				Frames:            5 * time.Millisecond,
				ClientIdleTimeout: time.Minute,
				IDs:               ids,
			}
			stream.Handle(ctx, conn, h)
		},
	})
	t.Cleanup(server.Close)
	return server, userAgents
}

func TestSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		server, _ := startTestServer(t, ctx)

		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		var gotResult bool
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint: "http://localterra",
			SendResult: func(_ context.Context, res SmokeTestResults) error {
				require.Equal(t, "http://localterra", res.FromEndpoint)
				require.Equal(t, server.URL, res.ToEndpoint)
				require.Equal(t, StatusSuccess, res.Status)
				require.Greater(t, res.TileCount, 1)
				require.Greater(t, res.MergesObserved, 0)
				gotResult = true
				return nil
			},
		})

		body, err := json.Marshal(SmokeTestRequest{
			Endpoint: server.URL,
			Timeout:  5 * time.Second,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localterra", bytes.NewBuffer(body))

		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		<-ctx.Done()
		require.True(t, gotResult)
	})

	t.Run("smoke test failed - offline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		var gotResult bool
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint: "http://localterra",
			SendResult: func(_ context.Context, res SmokeTestResults) error {
				require.Equal(t, StatusFailed, res.Status)
				require.NotEmpty(t, res.Error)
				gotResult = true
				return nil
			},
		})

		body, err := json.Marshal(SmokeTestRequest{
			Endpoint: "http://127.0.0.1:1",
			Timeout:  time.Second,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localterra", bytes.NewBuffer(body))

		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		<-ctx.Done()
		require.True(t, gotResult)
	})

	t.Run("user agent reaches the server", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		server, userAgents := startTestServer(t, ctx)

		res, err := RunSmokeTest(ctx, RunSmokeTestOptions{
			FromEndpoint: "http://localterra",
			ToEndpoint:   server.URL,
			UserAgent:    "Terrastream test",
			Timeout:      5 * time.Second,
		})
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, res.Status)
		require.Equal(t, "Terrastream test", <-userAgents)
	})

	t.Run("malformed request is rejected", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localterra", bytes.NewBufferString("{"))

		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
