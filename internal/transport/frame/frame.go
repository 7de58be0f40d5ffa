// Package frame is the framing shared by the network transports: one JSON
// object per transport message, tagged with what it carries.
package frame

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/jsbridge/internal/transport"
)

// Type tags a frame.
type Type string

const (
	// Message carries one bridge envelope, in either direction.
	Message Type = "message"
	// Evaluate carries script text for the remote environment.
	Evaluate Type = "evaluate"
	// Console carries a forwarded console line from the remote side.
	Console Type = "console"
	// Ready tells the native side the remote page finished loading.
	Ready Type = "ready"
	// Reload tells the native side the remote page started loading again.
	Reload Type = "reload"
)

// ErrUnknownType is returned when decoding a frame with an unknown type.
var ErrUnknownType = errors.New("unknown frame type")

// Frame is one transport message
type Frame struct {
	Type    Type   `json:"type"`
	Payload string `json:"payload,omitempty"`
}

// Encode returns the wire form of f.
func Encode(f Frame) ([]byte, error) {
	data, err := sonic.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// Decode parses a frame and checks its type.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if !f.Type.Valid() {
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	return f, nil
}

// Valid reports whether t is a known frame type.
func (t Type) Valid() bool {
	switch t {
	case Message, Evaluate, Console, Ready, Reload:
		return true
	}
	return false
}

// Route hands a frame arriving on the native side to in. It reports false for
// frames the native side does not accept.
func Route(f Frame, in transport.Inbound) bool {
	switch f.Type {
	case Message:
		in.Message(f.Payload)
	case Console:
		in.Console(f.Payload)
	case Ready:
		in.Ready()
	case Reload:
		in.Reload()
	default:
		return false
	}
	return true
}
