package ws

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsbridge/internal/transport"
	"github.com/GriffinCanCode/jsbridge/internal/transport/frame"
)

// Conn is the native end of a websocket bridge connection. It implements
// transport.Transport for a bridge whose remote environment sits on the
// other side of the socket.
type Conn struct {
	*peer

	mu       sync.RWMutex
	inbound  transport.Inbound
	attached bool
}

// NewConn wraps an upgraded server connection.
func NewConn(conn *websocket.Conn, opts Options) *Conn {
	return &Conn{peer: newPeer(conn, "native", opts)}
}

// Send writes a message frame.
func (c *Conn) Send(message string) error {
	return c.write(frame.Frame{Type: frame.Message, Payload: message})
}

// Evaluate writes an evaluate frame.
func (c *Conn) Evaluate(script string) error {
	return c.write(frame.Frame{Type: frame.Evaluate, Payload: script})
}

// Attach installs the callbacks inbound frames are routed to.
func (c *Conn) Attach(in transport.Inbound) {
	c.mu.Lock()
	c.inbound = in
	c.attached = true
	c.mu.Unlock()
}

// Detach drops later inbound frames.
func (c *Conn) Detach() {
	c.mu.Lock()
	c.inbound = transport.Inbound{}
	c.attached = false
	c.mu.Unlock()
}

// Serve reads frames and routes them to the attached callbacks until the
// connection closes or ctx is done.
func (c *Conn) Serve(ctx context.Context) error {
	c.log.Info("Serving bridge connection")
	return c.readLoop(ctx, c.route)
}

// Close closes the socket.
func (c *Conn) Close() error {
	return c.close()
}

func (c *Conn) route(f frame.Frame) {
	c.mu.RLock()
	in, attached := c.inbound, c.attached
	c.mu.RUnlock()

	if !attached {
		c.log.Debug("Dropping frame, nothing attached", zap.String("type", string(f.Type)))
		return
	}
	if !frame.Route(f, in) {
		c.log.Warn("Unexpected frame from remote", zap.String("type", string(f.Type)))
	}
}

var _ transport.Transport = (*Conn)(nil)
