package bridge

import "errors"

var (
	// ErrNotReady is returned by CallContext when the call was dropped
	// because the remote environment is not ready.
	ErrNotReady = errors.New("bridge is not ready")

	// ErrSend is returned by CallContext when the transport refused the message.
	ErrSend = errors.New("send failed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrInputType is returned by typed handlers whose payload does not have
	// the declared Go type.
	ErrInputType = errors.New("unexpected input type")
)

var (
	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrAbandoned is returned by CallContext when a reset or close dropped
	// the pending call before its reply arrived.
	ErrAbandoned = errors.New("call abandoned")
)
