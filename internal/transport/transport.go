// Package transport defines the contract between a bridge and the channel
// that carries its strings. Implementations live in the subpackages.
package transport

import "errors"

// ErrDetached is returned by Send and Evaluate once a transport has no
// inbound side attached or its connection is gone.
var ErrDetached = errors.New("transport detached")

// Transport delivers strings to the remote environment and reports what
// comes back through the attached Inbound.
type Transport interface {
	// Send delivers one encoded envelope to the remote bridge script.
	Send(message string) error
	// Evaluate runs script text verbatim in the remote environment.
	Evaluate(script string) error
	// Attach installs the inbound callbacks, replacing any previous set.
	Attach(in Inbound)
	// Detach removes the inbound callbacks. Later arrivals are dropped.
	Detach()
}

// Inbound holds the callbacks a transport invokes. Any of them may be nil.
// One OnMessage call carries exactly one complete envelope.
type Inbound struct {
	OnMessage func(raw string)
	OnConsole func(line string)
	// OnReady fires when the remote environment finished loading.
	OnReady func()
	// OnReload fires when the remote environment starts loading again and
	// everything it held is gone.
	OnReload func()
}

// Message calls OnMessage when set.
func (in Inbound) Message(raw string) {
	if in.OnMessage != nil {
		in.OnMessage(raw)
	}
}

// Console calls OnConsole when set.
func (in Inbound) Console(line string) {
	if in.OnConsole != nil {
		in.OnConsole(line)
	}
}

// Ready calls OnReady when set.
func (in Inbound) Ready() {
	if in.OnReady != nil {
		in.OnReady()
	}
}

// Reload calls OnReload when set.
func (in Inbound) Reload() {
	if in.OnReload != nil {
		in.OnReload()
	}
}
