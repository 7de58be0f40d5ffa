package bridge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/jsbridge/internal/bridge/codec"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/envelope"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/registry"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbridge/internal/shared/id"
	"github.com/GriffinCanCode/jsbridge/internal/transport"
)

// Options configures a Bridge. The zero value is usable.
type Options struct {
	// ID names the bridge in logs. Generated when empty.
	ID id.BridgeID

	Logger  *logging.Logger
	Metrics *monitoring.Metrics

	// Scripts are evaluated in order each time the remote side becomes ready.
	Scripts []string

	// MaxConcurrentDispatch bounds how many inbound messages are handled at
	// once. Zero handles each message inline on the transport's goroutine.
	MaxConcurrentDispatch int64

	// ConsoleSink receives lines forwarded by the remote console hook.
	ConsoleSink func(line string)
}

// Bridge is the local end of a bidirectional call channel
type Bridge struct {
	id        id.BridgeID
	transport transport.Transport
	logger    *logging.Logger
	log       *zap.Logger
	console   *zap.Logger
	metrics   *monitoring.Metrics
	scripts   []string
	sink      func(string)
	sem       *semaphore.Weighted
	inflight  sync.WaitGroup

	calls    *registry.Correlations[Callback]
	handlers *registry.Handlers[Handler]

	mu         sync.Mutex
	state      State
	injected   bool
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	abandon    chan struct{}
}

// New creates a bridge in StateCreated and attaches it to t.
func New(t transport.Transport, opts Options) *Bridge {
	if opts.ID == "" {
		opts.ID = id.NewBridgeID()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	b := &Bridge{
		id:        opts.ID,
		transport: t,
		logger:    opts.Logger,
		log:       opts.Logger.Named("bridge").With(zap.String("bridge_id", opts.ID.String())).Logger,
		console:   opts.Logger.Named("console").With(zap.String("bridge_id", opts.ID.String())).Logger,
		metrics:   opts.Metrics,
		scripts:   append([]string(nil), opts.Scripts...),
		sink:      opts.ConsoleSink,
		calls:     registry.NewCorrelations[Callback](),
		handlers:  registry.NewHandlers[Handler](),
		state:     StateCreated,
		abandon:   make(chan struct{}),
	}
	if opts.MaxConcurrentDispatch > 0 {
		b.sem = semaphore.NewWeighted(opts.MaxConcurrentDispatch)
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	t.Attach(b.inbound())
	b.metrics.BridgeAttached()
	b.log.Debug("Bridge created", zap.Int("scripts", len(b.scripts)))
	return b
}

// ID returns the bridge identifier.
func (b *Bridge) ID() id.BridgeID {
	return b.id
}

// Register adds a handler the remote side may call. A handler already
// registered under name is replaced.
func (b *Bridge) Register(name string, h Handler) error {
	if h == nil {
		return fmt.Errorf("register %q: %w", name, ErrNilHandler)
	}
	replaced, err := b.handlers.Register(name, h)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if replaced {
		b.log.Debug("Replaced handler", zap.String("handler", name))
	}
	return nil
}

// Unregister removes a handler
func (b *Bridge) Unregister(name string) {
	b.handlers.Unregister(name)
}

// Handlers returns the registered handler names in sorted order
func (b *Bridge) Handlers() []string {
	return b.handlers.Names()
}

// PendingCalls returns the number of calls waiting for a reply
func (b *Bridge) PendingCalls() int {
	return b.calls.Len()
}

// SetLogLevel changes the verbosity of this bridge's logger tree.
func (b *Bridge) SetLogLevel(level string) error {
	return b.logger.SetLevel(level)
}

// LogLevel returns the current verbosity.
func (b *Bridge) LogLevel() string {
	return b.logger.Level()
}

// Call invokes a remote handler. With a non-nil cb the reply is delivered to
// it; without one no reply is requested. Call never blocks on the reply and
// never fails: a call made while the bridge is not Ready is dropped and
// logged, as is one the transport refuses.
func (b *Bridge) Call(name string, data any, cb Callback) {
	_, _, _ = b.call(name, data, cb)
}

// CallContext invokes a remote handler and waits for its reply or ctx.
func (b *Bridge) CallContext(ctx context.Context, name string, data any) (any, error) {
	return b.CallContextAs(ctx, name, data, nil)
}

// CallContextAs is CallContext with the reply decoded against shape.
func (b *Bridge) CallContextAs(ctx context.Context, name string, data any, shape codec.Shape) (any, error) {
	result := make(chan any, 1)
	cbID, abandon, err := b.call(name, data, Expect(shape, func(v any) { result <- v }))
	if err != nil {
		return nil, err
	}

	select {
	case v := <-result:
		return v, nil
	case <-abandon:
		return nil, fmt.Errorf("%s: %w", name, ErrAbandoned)
	case <-ctx.Done():
		b.forget(cbID)
		return nil, ctx.Err()
	}
}

// call returns the callback id and the abandon channel of the generation the
// call was registered in.
func (b *Bridge) call(name string, data any, cb Callback) (string, <-chan struct{}, error) {
	cbID, abandon, state := b.register(cb)
	if state != StateReady {
		b.log.Warn("Dropping call, bridge not ready",
			zap.String("handler", name),
			zap.Stringer("state", state),
		)
		b.metrics.RecordCall("dropped")
		return "", nil, ErrNotReady
	}

	msg, err := envelope.Call{HandlerName: name, Data: data, CallbackID: cbID}.Encode()
	if err == nil {
		err = b.transport.Send(msg)
	}
	if err != nil {
		b.forget(cbID)
		b.log.Error("Failed to send call", zap.String("handler", name), zap.Error(err))
		b.metrics.RecordCall("failed")
		return "", nil, fmt.Errorf("%w: %s: %w", ErrSend, name, err)
	}

	b.log.Debug("Sent call", zap.String("handler", name), zap.String("callback_id", cbID))
	b.metrics.RecordCall("sent")
	return cbID, abandon, nil
}

// register allocates an id for cb while the bridge is Ready. The state check
// and the allocation happen under mu, so Reset and Close either see the entry
// and clear it or make the call observe a non-Ready state.
func (b *Bridge) register(cb Callback) (string, <-chan struct{}, State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReady {
		return "", nil, b.state
	}
	if cb == nil {
		return "", b.abandon, b.state
	}
	cbID := b.calls.Allocate(cb)
	b.metrics.AddPending(1)
	return cbID, b.abandon, b.state
}

// forget drops a pending call that can no longer be answered.
func (b *Bridge) forget(cbID string) {
	if cbID == "" {
		return
	}
	if _, ok := b.calls.Take(cbID); ok {
		b.metrics.AddPending(-1)
	}
}

// Wait blocks until inbound messages being dispatched concurrently are done.
// It must not be called from a handler.
func (b *Bridge) Wait() {
	b.inflight.Wait()
}

func (b *Bridge) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

func (b *Bridge) inbound() transport.Inbound {
	return transport.Inbound{
		OnMessage: b.deliver,
		OnConsole: b.onConsole,
		OnReady:   b.OnRemoteReady,
		OnReload:  b.OnRemoteReloading,
	}
}

func (b *Bridge) onConsole(line string) {
	b.console.Debug(line)
	b.metrics.RecordConsole()
	if b.sink != nil {
		b.sink(line)
	}
}
