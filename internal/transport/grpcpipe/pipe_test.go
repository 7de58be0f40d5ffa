package grpcpipe_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/GriffinCanCode/jsbridge/internal/bridge"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/codec"
	"github.com/GriffinCanCode/jsbridge/internal/transport"
	"github.com/GriffinCanCode/jsbridge/internal/transport/frame"
	"github.com/GriffinCanCode/jsbridge/internal/transport/grpcpipe"
)

func startPipe(t *testing.T, accept grpcpipe.AcceptFunc) *grpcpipe.Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	grpcpipe.NewServer(accept, grpcpipe.Options{}).Register(srv)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := grpcpipe.Dial(context.Background(), "passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func recvWithin(t *testing.T, c *grpcpipe.Client) frame.Frame {
	t.Helper()
	type result struct {
		f   frame.Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := c.Recv()
		ch <- result{f, err}
	}()
	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return frame.Frame{}
	}
}

func TestBridgeOverPipe(t *testing.T) {
	bridges := make(chan *bridge.Bridge, 1)
	client := startPipe(t, func(c *grpcpipe.Conn) {
		b := bridge.New(c, bridge.Options{Scripts: []string{"var bootstrap = 1;"}})
		assert.NoError(t, b.Register("Sum", bridge.HandlerFunc(func(_ context.Context, data any) (any, error) {
			f := codec.Fields(data.(map[string]any))
			a, _ := f.Int64("a")
			c, _ := f.Int64("b")
			return a + c, nil
		})))
		bridges <- b
	})

	require.NoError(t, client.Write(frame.Frame{Type: frame.Ready}))
	var b *bridge.Bridge
	select {
	case b = <-bridges:
	case <-time.After(2 * time.Second):
		t.Fatal("stream not accepted")
	}
	t.Cleanup(b.Close)

	f := recvWithin(t, client)
	assert.Equal(t, frame.Evaluate, f.Type)
	assert.Equal(t, "var bootstrap = 1;", f.Payload)
	require.Eventually(t, func() bool { return b.State() == bridge.StateReady }, time.Second, 5*time.Millisecond)

	require.NoError(t, client.Write(frame.Frame{
		Type:    frame.Message,
		Payload: `{"handlerName":"Sum","data":"{\"a\":1,\"b\":2}","callbackId":"cb_1"}`,
	}))
	f = recvWithin(t, client)
	assert.Equal(t, frame.Message, f.Type)
	assert.JSONEq(t, `{"responseId":"cb_1","responseData":"3"}`, f.Payload)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan any, 1)
	go func() {
		v, err := b.CallContext(ctx, "Echo", "hi")
		assert.NoError(t, err)
		done <- v
	}()

	f = recvWithin(t, client)
	require.Equal(t, frame.Message, f.Type)
	assert.Equal(t, "Echo", gjson.Get(f.Payload, "handlerName").String())
	cbID := gjson.Get(f.Payload, "callbackId").String()
	assert.Equal(t, "native_cb_1", cbID)

	require.NoError(t, client.Write(frame.Frame{
		Type:    frame.Message,
		Payload: `{"responseId":"` + cbID + `","responseData":"\"hi\""}`,
	}))
	select {
	case v := <-done:
		assert.Equal(t, "hi", v)
	case <-ctx.Done():
		t.Fatal("call not resolved")
	}
}

func TestPipeRoutesConsoleAndReload(t *testing.T) {
	lines := make(chan string, 1)
	reloads := make(chan struct{}, 1)
	client := startPipe(t, func(c *grpcpipe.Conn) {
		c.Attach(transport.Inbound{
			OnConsole: func(line string) { lines <- line },
			OnReload:  func() { reloads <- struct{}{} },
		})
	})

	require.NoError(t, client.Write(frame.Frame{Type: frame.Reload}))
	require.NoError(t, client.Write(frame.Frame{Type: frame.Console, Payload: "hello"}))

	select {
	case <-reloads:
	case <-time.After(2 * time.Second):
		t.Fatal("reload not routed")
	}
	select {
	case line := <-lines:
		assert.Equal(t, "hello", line)
	case <-time.After(2 * time.Second):
		t.Fatal("console not routed")
	}
}

func TestClosedConnRejectsSends(t *testing.T) {
	conns := make(chan *grpcpipe.Conn, 1)
	client := startPipe(t, func(c *grpcpipe.Conn) { conns <- c })
	require.NoError(t, client.Write(frame.Frame{Type: frame.Console, Payload: "x"}))

	var c *grpcpipe.Conn
	select {
	case c = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("stream not accepted")
	}
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send("x"), transport.ErrDetached)
	<-c.Done()
}
