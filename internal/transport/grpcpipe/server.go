package grpcpipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbridge/internal/shared/id"
	"github.com/GriffinCanCode/jsbridge/internal/transport"
	"github.com/GriffinCanCode/jsbridge/internal/transport/frame"
)

const transportName = "grpc"

// Options configures the server side of the pipe.
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics

	// MessagesPerSecond limits inbound frames per stream. Zero disables it.
	MessagesPerSecond float64
	Burst             int
}

// AcceptFunc is called with every new stream before it is served. It
// typically creates a bridge on the connection.
type AcceptFunc func(c *Conn)

// Server accepts remote environments over the Connect stream.
type Server struct {
	accept AcceptFunc
	opts   Options
	log    *zap.Logger
}

// NewServer creates a pipe server.
func NewServer(accept AcceptFunc, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		accept: accept,
		opts:   opts,
		log:    opts.Logger.Named("grpcpipe"),
	}
}

// Register installs the pipe service on s.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	registrar.RegisterService(&serviceDesc, s)
}

func (s *Server) connect(stream grpc.ServerStream) error {
	c := newConn(stream, s.opts, s.log)
	c.log.Info("Remote connected")
	s.accept(c)

	err := c.Serve(stream.Context())
	c.log.Info("Remote disconnected", zap.Error(err))
	if err != nil && !errors.Is(err, context.Canceled) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return nil
}

// Conn is the native end of one Connect stream and implements
// transport.Transport.
type Conn struct {
	id      id.ConnectionID
	stream  grpc.ServerStream
	log     *zap.Logger
	metrics *monitoring.Metrics
	limiter *rate.Limiter

	sendMu sync.Mutex

	mu       sync.RWMutex
	inbound  transport.Inbound
	attached bool

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(stream grpc.ServerStream, opts Options, log *zap.Logger) *Conn {
	connID := id.NewConnectionID()
	c := &Conn{
		id:      connID,
		stream:  stream,
		log:     log.With(zap.String("conn_id", connID.String())),
		metrics: opts.Metrics,
		done:    make(chan struct{}),
	}
	if opts.MessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), max(opts.Burst, 1))
	}
	return c
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id.String()
}

// Context returns the stream context. It carries the trace of the stream
// when the server is traced.
func (c *Conn) Context() context.Context {
	return c.stream.Context()
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

// Close ends the stream.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Serve routes inbound frames until the remote closes its side, ctx is done
// or Close is called.
func (c *Conn) Serve(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- c.recvLoop(ctx) }()

	select {
	case err := <-errc:
		c.Close()
		return err
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	case <-c.done:
		return nil
	}
}

func (c *Conn) recvLoop(ctx context.Context) error {
	for {
		var msg wrapperspb.StringValue
		if err := c.stream.RecvMsg(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("receive frame: %w", err)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		f, err := frame.Decode([]byte(msg.GetValue()))
		if err != nil {
			c.log.Warn("Dropping invalid frame", zap.Error(err))
			c.metrics.RecordFrame(transportName, "in", "invalid")
			continue
		}
		c.metrics.RecordFrame(transportName, "in", string(f.Type))
		c.route(f)
	}
}

func (c *Conn) route(f frame.Frame) {
	c.mu.RLock()
	in, attached := c.inbound, c.attached
	c.mu.RUnlock()

	if !attached {
		return
	}
	if !frame.Route(f, in) {
		c.log.Warn("Unexpected frame from remote", zap.String("type", string(f.Type)))
	}
}

func (c *Conn) write(f frame.Frame) error {
	select {
	case <-c.done:
		return transport.ErrDetached
	default:
	}

	data, err := frame.Encode(f)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	err = c.stream.SendMsg(wrapperspb.String(string(data)))
	c.sendMu.Unlock()
	if err != nil {
		c.metrics.RecordFrame(transportName, "out", "failed")
		return fmt.Errorf("send %s frame: %w", f.Type, err)
	}
	c.metrics.RecordFrame(transportName, "out", string(f.Type))
	return nil
}

var _ transport.Transport = (*Conn)(nil)
