package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsbridge/internal/transport"
	"github.com/GriffinCanCode/jsbridge/internal/transport/frame"
	"github.com/GriffinCanCode/jsbridge/internal/transport/jsvm"
)

const (
	bridgeProbe = `typeof WebViewJavascriptBridge === "object"`
	hookProbe   = bridgeProbe + ` && window.isConsoleHooked === true`
)

// Remote hosts the page side of a websocket bridge connection. Frames from
// the native side are played into a script environment and everything the
// page reports goes back as frames.
type Remote struct {
	*peer
	env *jsvm.Env

	probe string

	mu      sync.Mutex
	page    string
	pending bool
}

// Dial connects to a native bridge endpoint and hosts env behind it.
func Dial(ctx context.Context, url string, header http.Header, env *jsvm.Env, opts Options) (*Remote, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewRemote(conn, env, opts), nil
}

// NewRemote wraps a client connection and attaches to env.
func NewRemote(conn *websocket.Conn, env *jsvm.Env, opts Options) *Remote {
	r := &Remote{peer: newPeer(conn, "remote", opts), env: env, probe: bridgeProbe}
	if opts.ConsoleHook {
		r.probe = hookProbe
	}
	env.Attach(transport.Inbound{
		OnMessage: func(raw string) { r.forward(frame.Frame{Type: frame.Message, Payload: raw}) },
		OnConsole: func(line string) { r.forward(frame.Frame{Type: frame.Console, Payload: line}) },
		OnReady:   func() { r.forward(frame.Frame{Type: frame.Ready}) },
		OnReload:  func() { r.forward(frame.Frame{Type: frame.Reload}) },
	})
	return r
}

// Navigate loads a blank page and runs pageScript once the native side
// has installed the bridge script in it, and the console hook too when
// Options.ConsoleHook is set.
func (r *Remote) Navigate(pageScript string) error {
	r.mu.Lock()
	r.page = pageScript
	r.pending = pageScript != ""
	r.mu.Unlock()
	return r.env.Navigate("")
}

// Serve plays native frames into the environment until the connection
// closes or ctx is done.
func (r *Remote) Serve(ctx context.Context) error {
	return r.readLoop(ctx, func(f frame.Frame) { r.handle(ctx, f) })
}

// Close detaches from the environment and closes the socket. The
// environment itself stays open.
func (r *Remote) Close() error {
	r.env.Detach()
	return r.close()
}

func (r *Remote) handle(ctx context.Context, f frame.Frame) {
	switch f.Type {
	case frame.Evaluate:
		if err := r.env.Evaluate(f.Payload); err != nil {
			r.log.Warn("Failed to queue script", zap.Error(err))
			return
		}
		r.runPendingPage(ctx)
	case frame.Message:
		if err := r.env.Send(f.Payload); err != nil {
			r.log.Warn("Failed to deliver message", zap.Error(err))
		}
	default:
		r.log.Warn("Unexpected frame from native side", zap.String("type", string(f.Type)))
	}
}

func (r *Remote) runPendingPage(ctx context.Context) {
	r.mu.Lock()
	page, pending := r.page, r.pending
	r.mu.Unlock()
	if !pending {
		return
	}

	installed, err := r.env.Run(ctx, r.probe)
	if err != nil || installed != true {
		return
	}

	r.mu.Lock()
	if !r.pending || r.page != page {
		r.mu.Unlock()
		return
	}
	r.pending = false
	r.mu.Unlock()

	r.log.Debug("Bootstrap scripts installed, running page")
	if err := r.env.Evaluate(page); err != nil {
		r.log.Warn("Failed to queue page", zap.Error(err))
	}
}

func (r *Remote) forward(f frame.Frame) {
	if err := r.write(f); err != nil {
		r.log.Debug("Dropping frame", zap.String("type", string(f.Type)), zap.Error(err))
	}
}
