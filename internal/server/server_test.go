package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jsbridge/internal/bridge"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/assets"
	"github.com/GriffinCanCode/jsbridge/internal/demo"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/monitoring"
	tu "github.com/GriffinCanCode/jsbridge/internal/testutil"
	"github.com/GriffinCanCode/jsbridge/internal/transport/frame"
	"github.com/GriffinCanCode/jsbridge/internal/transport/grpcpipe"
	"github.com/GriffinCanCode/jsbridge/internal/transport/jsvm"
	"github.com/GriffinCanCode/jsbridge/internal/transport/ws"
)

const page = `
WebViewJavascriptBridge.callHandler("Sum", { a: 40, b: 2 }, function (result) {
  window.sumResult = result;
});
`

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	s := New(cfg, logging.NewNop(), monitoring.NewMetrics(), assets.Embedded())
	t.Cleanup(func() {
		s.hub.CloseAll()
		s.tracer.Close()
	})
	return s
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(body, &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","bridges":0}`, w.Body.String())
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"http://app.example"}
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://app.example")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetLogLevel(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"valid", `{"level":"debug"}`, http.StatusOK},
		{"unknown level", `{"level":"loud"}`, http.StatusBadRequest},
		{"missing level", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/log-level", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			s.Router().ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
	assert.Equal(t, "debug", s.logger.Level())
}

func TestConnectRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.ConnectsPerSecond = 1
		cfg.RateLimit.ConnectBurst = 1
	})

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bridge", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code, "plain GET fails the upgrade")

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bridge", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestWebsocketBridge(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env := jsvm.New(jsvm.DefaultConfig())
	defer env.Close()
	remote, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/bridge", nil, env, ws.DefaultOptions())
	require.NoError(t, err)
	go remote.Serve(context.Background())

	require.NoError(t, remote.Navigate(page))
	require.Eventually(t, func() bool {
		v, err := env.Run(ctx, "window.sumResult")
		return err == nil && v == int64(42)
	}, 3*time.Second, 10*time.Millisecond)

	list := s.hub.List()
	require.Len(t, list, 1)
	assert.Equal(t, "ws", list[0].Transport)
	assert.Equal(t, bridge.StateReady.String(), list[0].State)
	assert.Equal(t, demo.Names, list[0].Handlers)

	health := getJSON(t, srv.URL+"/health")
	assert.EqualValues(t, 1, health["bridges"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "jsbridge_bridges_active 1")
	assert.Contains(t, string(body), `jsbridge_transport_frames_total{direction="in",transport="ws",type="ready"}`)

	require.NoError(t, remote.Close())
	require.Eventually(t, func() bool { return s.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWithPipe(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.GRPCPort = "0"
	})

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, httpLis, grpcLis) }()

	client, err := grpcpipe.Dial(context.Background(), grpcLis.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Write(frame.Frame{Type: frame.Ready}))
	bundle := assets.Embedded()
	for _, want := range bundle.Scripts(true) {
		f, err := client.Recv()
		require.NoError(t, err)
		assert.Equal(t, frame.Evaluate, f.Type)
		assert.Equal(t, want, f.Payload)
	}

	require.NoError(t, client.Write(frame.Frame{
		Type:    frame.Message,
		Payload: `{"handlerName":"Sum","data":"{\"a\":1,\"b\":2}","callbackId":"cb_1"}`,
	}))
	f, err := client.Recv()
	require.NoError(t, err)
	assert.JSONEq(t, `{"responseId":"cb_1","responseData":"3"}`, f.Payload)
	assert.Equal(t, 1, s.hub.Len())

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	assert.Equal(t, 0, s.hub.Len())
}

func TestHubListIsSorted(t *testing.T) {
	hub := NewHub()
	for _, connID := range []string{"b", "a", "c"} {
		rec := tu.NewRecorder()
		hub.add(connID, session{bridge: bridge.New(rec, bridge.Options{}), conn: io.NopCloser(nil), transport: "test"})
	}

	list := hub.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ConnID)
	assert.Equal(t, "c", list[2].ConnID)
	assert.Equal(t, "created", list[0].State)
	assert.WithinDuration(t, time.Now(), list[0].CreatedAt, time.Minute)

	b, ok := hub.Get("b")
	require.True(t, ok)
	hub.CloseAll()
	assert.Equal(t, bridge.StateClosed, b.State())
	assert.Zero(t, hub.Len())
}
