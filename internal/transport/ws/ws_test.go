package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jsbridge/internal/bridge"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/assets"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/codec"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsbridge/internal/transport"
	"github.com/GriffinCanCode/jsbridge/internal/transport/jsvm"
	"github.com/GriffinCanCode/jsbridge/internal/transport/ws"
)

const page = `
WebViewJavascriptBridge.registerHandler("Mul", function (data, respond) {
  respond(data.a * data.b);
});
WebViewJavascriptBridge.callHandler("Sum", { a: 1, b: 2 }, function (result) {
  window.sumResult = result;
});
console.log("page loaded");
`

// serve starts a websocket endpoint handing every connection to onConn
// before serving it.
func serve(t *testing.T, opts ws.Options, onConn func(*ws.Conn)) string {
	t.Helper()
	upgrader := ws.NewUpgrader(nil)

	var mu sync.Mutex
	var conns []*ws.Conn
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := ws.NewConn(raw, opts)
		mu.Lock()
		conns = append(conns, c)
		mu.Unlock()

		onConn(c)
		_ = c.Serve(context.Background())
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialRaw(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBridgeOverWebsocket(t *testing.T) {
	bridges := make(chan *bridge.Bridge, 1)
	var console sync.Map

	url := serve(t, ws.DefaultOptions(), func(c *ws.Conn) {
		b := bridge.New(c, bridge.Options{
			Scripts:               assets.Embedded().Scripts(true),
			MaxConcurrentDispatch: 4,
			ConsoleSink:           func(line string) { console.Store(line, true) },
		})
		assert.NoError(t, b.Register("Sum", bridge.HandlerFunc(func(_ context.Context, data any) (any, error) {
			f := codec.Fields(data.(map[string]any))
			a, err := f.Int64("a")
			if err != nil {
				return nil, err
			}
			c, err := f.Int64("b")
			return a + c, err
		})))
		bridges <- b
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	remoteOpts := ws.DefaultOptions()
	remoteOpts.ConsoleHook = true
	env, remote := dialRemote(t, ctx, url, remoteOpts)

	var b *bridge.Bridge
	select {
	case b = <-bridges:
	case <-ctx.Done():
		t.Fatal("no connection accepted")
	}
	t.Cleanup(b.Close)

	require.NoError(t, remote.Navigate(page))
	require.Eventually(t, func() bool {
		v, err := env.Run(ctx, "window.sumResult")
		return err == nil && v == int64(3)
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, bridge.StateReady, b.State())

	got, err := b.CallContext(ctx, "Mul", map[string]any{"a": 6, "b": 7})
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)

	require.Eventually(t, func() bool {
		_, ok := console.Load("page loaded")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func dialRemote(t *testing.T, ctx context.Context, url string, opts ws.Options) (*jsvm.Env, *ws.Remote) {
	t.Helper()
	env := jsvm.New(jsvm.DefaultConfig())
	remote, err := ws.Dial(ctx, url, nil, env, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		remote.Close()
		env.Close()
	})
	go remote.Serve(context.Background())
	return env, remote
}

func TestPageRunsAfterEveryBootstrapScript(t *testing.T) {
	tests := []struct {
		name  string
		hook  bool
		lines []string
	}{
		{"with console hook", true, []string{"Console hook has been applied successfully.", "first line", "later line"}},
		{"without console hook", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var lines []string
			sink := func(line string) {
				mu.Lock()
				lines = append(lines, line)
				mu.Unlock()
			}
			bridges := make(chan *bridge.Bridge, 1)

			url := serve(t, ws.DefaultOptions(), func(c *ws.Conn) {
				bridges <- bridge.New(c, bridge.Options{
					Scripts:     assets.Embedded().Scripts(tt.hook),
					ConsoleSink: sink,
				})
			})

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			opts := ws.DefaultOptions()
			opts.ConsoleHook = tt.hook
			env, remote := dialRemote(t, ctx, url, opts)
			b := <-bridges
			t.Cleanup(b.Close)

			require.NoError(t, remote.Navigate(`
console.log("first line");
setTimeout(function () { console.log("later line"); window.done = true; }, 20);
`))
			require.Eventually(t, func() bool {
				v, err := env.Run(ctx, "window.done")
				return err == nil && v == true
			}, 3*time.Second, 10*time.Millisecond)

			if tt.lines == nil {
				mu.Lock()
				defer mu.Unlock()
				assert.Empty(t, lines)
				return
			}
			require.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(lines) == len(tt.lines)
			}, time.Second, 10*time.Millisecond)
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, tt.lines, lines)
		})
	}
}

func TestConnRoutesFrames(t *testing.T) {
	messages := make(chan string, 4)
	ready := make(chan struct{}, 1)

	url := serve(t, ws.DefaultOptions(), func(c *ws.Conn) {
		c.Attach(transport.Inbound{
			OnMessage: func(raw string) { messages <- raw },
			OnReady:   func() { ready <- struct{}{} },
		})
	})
	client := dialRaw(t, url)

	for _, msg := range []string{
		`not json`,
		`{"type":"bogus"}`,
		`{"type":"evaluate","payload":"1+1"}`,
		`{"type":"ready"}`,
		`{"type":"message","payload":"{\"handlerName\":\"A\"}"}`,
	} {
		require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("ready frame not routed")
	}
	select {
	case raw := <-messages:
		assert.Equal(t, `{"handlerName":"A"}`, raw)
	case <-time.After(2 * time.Second):
		t.Fatal("message frame not routed")
	}
	assert.Empty(t, messages)
}

func TestConnWritesFrames(t *testing.T) {
	conns := make(chan *ws.Conn, 1)
	url := serve(t, ws.DefaultOptions(), func(c *ws.Conn) { conns <- c })
	client := dialRaw(t, url)
	c := <-conns

	require.NoError(t, c.Send(`{"responseId":"native_cb_1"}`))
	require.NoError(t, c.Evaluate("var x = 1;"))

	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","payload":"{\"responseId\":\"native_cb_1\"}"}`, string(data))

	_, data, err = client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"evaluate","payload":"var x = 1;"}`, string(data))
}

func TestDetachDropsFrames(t *testing.T) {
	messages := make(chan string, 4)
	conns := make(chan *ws.Conn, 1)
	url := serve(t, ws.DefaultOptions(), func(c *ws.Conn) {
		c.Attach(transport.Inbound{OnMessage: func(raw string) { messages <- raw }})
		c.Detach()
		conns <- c
	})
	client := dialRaw(t, url)
	<-conns

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"message","payload":"x"}`)))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, messages)
}

func TestSendAfterCloseFails(t *testing.T) {
	conns := make(chan *ws.Conn, 1)
	url := serve(t, ws.DefaultOptions(), func(c *ws.Conn) { conns <- c })
	dialRaw(t, url)
	c := <-conns

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send("x"), transport.ErrDetached)

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestServeEndsWhenClientLeaves(t *testing.T) {
	served := make(chan error, 1)
	upgrader := ws.NewUpgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		served <- ws.NewConn(raw, ws.DefaultOptions()).Serve(context.Background())
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.NoError(t, client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	client.Close()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	served := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	upgrader := ws.NewUpgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		served <- ws.NewConn(raw, ws.DefaultOptions()).Serve(ctx)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	cancel()
	select {
	case err := <-served:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestUpgraderOrigins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no list", nil, "http://evil.example", true},
		{"wildcard", []string{"*"}, "http://evil.example", true},
		{"listed", []string{"http://app.example/"}, "http://app.example", true},
		{"not listed", []string{"http://app.example"}, "http://evil.example", false},
		{"no origin header", []string{"http://app.example"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/bridge", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, ws.NewUpgrader(tt.allowed).CheckOrigin(r))
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.MessagesPerSecond = 50
	cfg.RateLimit.Burst = 10

	opts := ws.OptionsFromConfig(cfg, nil, nil)
	assert.Equal(t, 50.0, opts.MessagesPerSecond)
	assert.Equal(t, 10, opts.Burst)
	assert.Equal(t, cfg.Breaker.MaxFailures, opts.Breaker.MaxFailures)
	assert.True(t, opts.ConsoleHook)

	cfg.RateLimit.Enabled = false
	assert.Zero(t, ws.OptionsFromConfig(cfg, nil, nil).MessagesPerSecond)
}
