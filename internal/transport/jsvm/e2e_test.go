package jsvm_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jsbridge/internal/bridge"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/assets"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/codec"
	"github.com/GriffinCanCode/jsbridge/internal/transport/jsvm"
)

const page = `
WebViewJavascriptBridge.registerHandler("Mul", function (data, respond) {
  respond(data.a * data.b);
});
WebViewJavascriptBridge.registerHandler("Echo", function (data, respond) {
  respond(data);
});
WebViewJavascriptBridge.callHandler("Sum", { a: 1, b: 2 }, function (result) {
  window.sumResult = result;
});
console.log("page loaded");
`

type consoleLines struct {
	mu    sync.Mutex
	lines []string
}

func (c *consoleLines) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *consoleLines) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func loadPage(t *testing.T) (*jsvm.Env, *bridge.Bridge, *consoleLines) {
	t.Helper()
	env := jsvm.New(jsvm.DefaultConfig())
	lines := &consoleLines{}
	b := bridge.New(env, bridge.Options{
		Scripts:               assets.Embedded().Scripts(true),
		MaxConcurrentDispatch: 4,
		ConsoleSink:           lines.add,
	})
	t.Cleanup(func() {
		b.Close()
		env.Close()
	})

	require.NoError(t, b.Register("Sum", bridge.HandlerFunc(func(_ context.Context, data any) (any, error) {
		f := codec.Fields(data.(map[string]any))
		a, err := f.Int64("a")
		if err != nil {
			return nil, err
		}
		c, err := f.Int64("b")
		return a + c, err
	})))

	require.NoError(t, env.Navigate(page))
	require.Eventually(t, func() bool {
		v, err := env.Run(context.Background(), "window.sumResult")
		return err == nil && v != nil
	}, 2*time.Second, 10*time.Millisecond)
	return env, b, lines
}

func TestPageCallsNativeHandler(t *testing.T) {
	env, b, _ := loadPage(t)

	assert.Equal(t, bridge.StateReady, b.State())
	got, err := env.Run(context.Background(), "window.sumResult")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)
}

func TestNativeCallsPageHandler(t *testing.T) {
	_, b, _ := loadPage(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := b.CallContext(ctx, "Mul", map[string]any{"a": 3, "b": 4})
	require.NoError(t, err)
	assert.Equal(t, int32(12), got)

	at := time.Date(2024, 5, 6, 7, 8, 9, 10_000_000, time.UTC)
	got, err = b.CallContext(ctx, "Echo", map[string]any{"at": at, "tags": []string{"x", "y"}, "n": 2.5})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"at": at, "tags": []any{"x", "y"}, "n": 2.5}, got)
}

func TestConsoleHookForwardsLines(t *testing.T) {
	_, _, lines := loadPage(t)
	assert.Contains(t, lines.all(), "page loaded")
}

func TestReloadKeepsHandlersAndReinjects(t *testing.T) {
	env, b, _ := loadPage(t)

	require.NoError(t, env.Navigate(page))
	require.Eventually(t, func() bool {
		v, err := env.Run(context.Background(), "window.sumResult")
		return err == nil && v == int64(3)
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, bridge.StateReady, b.State())
	assert.Equal(t, []string{"Sum"}, b.Handlers())
}

func TestUnknownNativeHandlerLeavesPageWaiting(t *testing.T) {
	env, _, _ := loadPage(t)

	_, err := env.Run(context.Background(), `
		window.answered = false;
		WebViewJavascriptBridge.callHandler("Nope", 1, function () { window.answered = true; });
	`)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	got, err := env.Run(context.Background(), "window.answered")
	require.NoError(t, err)
	assert.Equal(t, false, got)
}
