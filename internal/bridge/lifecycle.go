package bridge

import (
	"context"

	"go.uber.org/zap"
)

// State is the lifecycle position of a bridge.
type State int32

const (
	// StateCreated: attached to a transport, remote side not ready yet.
	StateCreated State = iota
	// StateReady: bootstrap scripts injected, calls are accepted.
	StateReady
	// StateClosed: detached and emptied. Reinitialize returns to StateCreated.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// OnRemoteReady handles the remote environment finishing its load. The
// bootstrap scripts are evaluated once, then the bridge turns Ready. Repeated
// signals before a reset are ignored, as is any signal while closed.
//
// Scripts run outside the lock; the bridge only becomes Ready if no reset or
// close happened meanwhile, so calls never reach a remote side that lacks the
// bridge script.
func (b *Bridge) OnRemoteReady() {
	b.mu.Lock()
	if b.state != StateCreated || b.injected {
		state := b.state
		b.mu.Unlock()
		b.log.Debug("Ignoring ready signal", zap.Stringer("state", state))
		return
	}
	b.injected = true
	gen := b.generation
	scripts := b.scripts
	b.mu.Unlock()

	b.log.Info("Remote ready, injecting bootstrap scripts", zap.Int("scripts", len(scripts)))
	for i, script := range scripts {
		if err := b.transport.Evaluate(script); err != nil {
			b.log.Error("Failed to inject bootstrap script", zap.Int("index", i), zap.Error(err))
		}
	}

	b.mu.Lock()
	if b.generation != gen || b.state != StateCreated {
		b.mu.Unlock()
		return
	}
	b.state = StateReady
	b.mu.Unlock()

	b.metrics.RecordTransition(StateReady.String())
}

// OnRemoteReloading handles the remote environment starting a new load. Its
// pending replies can never arrive, so this is a Reset.
func (b *Bridge) OnRemoteReloading() {
	b.log.Info("Remote reloading")
	b.Reset()
}

// Reset clears pending calls and the readiness flags but keeps handlers. The
// bridge returns to Created and waits for the next ready signal. It has no
// effect on a closed bridge.
func (b *Bridge) Reset() {
	b.mu.Lock()
	if b.state == StateClosed {
		b.mu.Unlock()
		return
	}
	b.state = StateCreated
	b.injected = false
	b.generation++
	abandon := b.rotateAbandon()
	dropped := b.calls.Clear()
	b.mu.Unlock()

	close(abandon)
	b.metrics.AddPending(-dropped)
	b.metrics.RecordTransition(StateCreated.String())
	b.log.Info("Bridge reset", zap.Int("dropped_calls", dropped))
}

// Close detaches from the transport and clears pending calls and handlers.
// In-flight handlers see their context canceled. Close is idempotent.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.state == StateClosed {
		b.mu.Unlock()
		return
	}
	b.state = StateClosed
	b.injected = false
	b.generation++
	b.cancel()
	abandon := b.rotateAbandon()
	dropped := b.calls.Clear()
	b.mu.Unlock()

	close(abandon)
	b.transport.Detach()
	b.handlers.Clear()

	b.metrics.AddPending(-dropped)
	b.metrics.RecordTransition(StateClosed.String())
	b.metrics.BridgeDetached()
	b.log.Info("Bridge closed", zap.Int("dropped_calls", dropped))
}

// Reinitialize brings a closed bridge back to Created and re-attaches it to
// its transport. Handlers have to be registered again.
func (b *Bridge) Reinitialize() {
	b.mu.Lock()
	if b.state != StateClosed {
		b.mu.Unlock()
		return
	}
	b.state = StateCreated
	b.generation++
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.mu.Unlock()

	b.transport.Attach(b.inbound())
	b.metrics.BridgeAttached()
	b.metrics.RecordTransition(StateCreated.String())
	b.log.Info("Bridge reinitialized")
}

// rotateAbandon must be called with mu held.
func (b *Bridge) rotateAbandon() chan struct{} {
	old := b.abandon
	b.abandon = make(chan struct{})
	return old
}
