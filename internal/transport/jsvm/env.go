package jsvm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsbridge/internal/bridge/envelope"
	"github.com/GriffinCanCode/jsbridge/internal/transport"
)

// Env is a page-like script environment. Everything touching the engine runs
// on one goroutine in submission order; Send, Evaluate and Navigate only
// queue work and never block on it.
//
// Inbound callbacks run on that goroutine too. A callback that waits for
// something the environment has yet to do will deadlock it.
type Env struct {
	config Config
	log    *zap.Logger

	mu       sync.Mutex
	queue    []func()
	closed   bool
	vm       *goja.Runtime
	inbound  transport.Inbound
	console  []LogEntry
	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	loopOnly loopState
}

// loopState is only touched by the loop goroutine.
type loopState struct {
	generation uint64
	timerSeq   int64
	timers     map[int64]*time.Timer
}

// New creates an environment showing a blank page. Call Navigate to load one.
func New(config Config) *Env {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	e := &Env{
		config: config,
		log:    config.Logger.Named("jsvm"),
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	e.loopOnly.timers = make(map[int64]*time.Timer)
	e.vm = e.newRuntime()

	go e.loop()
	return e
}

// Send delivers an envelope to the page's bridge script.
func (e *Env) Send(message string) error {
	script := envelope.DeliveryScript(message)
	return e.enqueue(func() { e.runLogged("deliver", script) })
}

// Evaluate runs script in the current page.
func (e *Env) Evaluate(script string) error {
	return e.enqueue(func() { e.runLogged("evaluate", script) })
}

// Attach installs the inbound callbacks.
func (e *Env) Attach(in transport.Inbound) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inbound = in
}

// Detach removes the inbound callbacks.
func (e *Env) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inbound = transport.Inbound{}
}

// Navigate replaces the page. The old page and its timers are discarded, the
// attached side sees OnReload then OnReady, and pageScript runs after any
// work queued by those callbacks, so scripts injected on ready are in place
// before the page uses them.
func (e *Env) Navigate(pageScript string) error {
	return e.enqueue(func() {
		e.resetPage()

		in := e.currentInbound()
		in.Reload()
		in.Ready()

		if pageScript != "" {
			_ = e.enqueue(func() { e.runLogged("page", pageScript) })
		}
	})
}

// Run evaluates script and returns its exported value.
func (e *Env) Run(ctx context.Context, script string) (any, error) {
	type outcome struct {
		value any
		err   error
	}
	res := make(chan outcome, 1)
	err := e.enqueue(func() {
		v, err := e.exec(func(vm *goja.Runtime) (goja.Value, error) { return vm.RunString(script) })
		res <- outcome{exportValue(v), err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case o := <-res:
		return o.value, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, ErrClosed
	}
}

// Flush waits until everything queued before it has run.
func (e *Env) Flush(ctx context.Context) error {
	_, err := e.Run(ctx, "")
	return err
}

// Console returns the retained console entries.
func (e *Env) Console() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LogEntry(nil), e.console...)
}

// Close stops the loop, interrupting a running script. Queued work is
// discarded. It must not be called from an inbound callback.
func (e *Env) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return nil
	}
	e.closed = true
	e.queue = nil
	vm := e.vm
	e.mu.Unlock()

	close(e.quit)
	vm.Interrupt(ErrClosed)
	<-e.done
	return nil
}

func (e *Env) enqueue(fn func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

func (e *Env) next() func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil
	}
	fn := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return fn
}

func (e *Env) loop() {
	defer close(e.done)
	defer e.stopTimers()

	for {
		select {
		case <-e.quit:
			return
		case <-e.wake:
		}
		for fn := e.next(); fn != nil; fn = e.next() {
			fn()
		}
	}
}

func (e *Env) currentInbound() transport.Inbound {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inbound
}

// resetPage swaps in a fresh engine. Loop goroutine only.
func (e *Env) resetPage() {
	e.stopTimers()
	e.loopOnly.generation++
	vm := e.newRuntime()

	e.mu.Lock()
	e.vm = vm
	e.console = nil
	e.mu.Unlock()
}

func (e *Env) stopTimers() {
	for id, t := range e.loopOnly.timers {
		t.Stop()
		delete(e.loopOnly.timers, id)
	}
}

func (e *Env) runtime() *goja.Runtime {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm
}

// exec runs fn against the current engine with the configured time limit.
func (e *Env) exec(fn func(vm *goja.Runtime) (goja.Value, error)) (val goja.Value, err error) {
	vm := e.runtime()
	if e.config.Timeout > 0 {
		timer := time.AfterFunc(e.config.Timeout, func() { vm.Interrupt(ErrTimeout) })
		defer func() {
			timer.Stop()
			vm.ClearInterrupt()
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	val, err = fn(vm)
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return nil, fmt.Errorf("%w: %w", cause, err)
		}
	}
	return val, err
}

func (e *Env) runLogged(kind, script string) {
	if _, err := e.exec(func(vm *goja.Runtime) (goja.Value, error) { return vm.RunString(script) }); err != nil {
		e.log.Warn("Script failed", zap.String("kind", kind), zap.Error(err))
	}
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
