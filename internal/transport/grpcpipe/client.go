package grpcpipe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/jsbridge/internal/transport/frame"
)

// Client is the remote end of a Connect stream.
type Client struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc

	sendMu sync.Mutex
}

// Dial connects to a pipe server and opens the stream. The stream lives
// until ctx is done or Close is called. Extra options are applied after
// the defaults.
func Dial(ctx context.Context, target string, extra ...grpc.DialOption) (*Client, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                60 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: false,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(10*1024*1024),
			grpc.MaxCallSendMsgSize(10*1024*1024),
		),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial pipe: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := conn.NewStream(streamCtx, &serviceDesc.Streams[0], ConnectMethod)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to open pipe stream: %w", err)
	}

	return &Client{conn: conn, stream: stream, cancel: cancel}, nil
}

// Write sends one frame.
func (c *Client) Write(f frame.Frame) error {
	data, err := frame.Encode(f)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.stream.SendMsg(wrapperspb.String(string(data)))
}

// Recv blocks for the next frame.
func (c *Client) Recv() (frame.Frame, error) {
	var msg wrapperspb.StringValue
	if err := c.stream.RecvMsg(&msg); err != nil {
		return frame.Frame{}, err
	}
	return frame.Decode([]byte(msg.GetValue()))
}

// Close ends the stream and the connection.
func (c *Client) Close() error {
	c.sendMu.Lock()
	_ = c.stream.CloseSend()
	c.sendMu.Unlock()
	c.cancel()
	return c.conn.Close()
}
