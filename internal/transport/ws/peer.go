package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/jsbridge/internal/shared/id"
	"github.com/GriffinCanCode/jsbridge/internal/transport"
	"github.com/GriffinCanCode/jsbridge/internal/transport/frame"
)

const transportName = "ws"

// peer is one end of a framed websocket connection.
type peer struct {
	id           id.ConnectionID
	conn         *websocket.Conn
	log          *zap.Logger
	metrics      *monitoring.Metrics
	breaker      *resilience.Breaker
	limiter      *rate.Limiter
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newPeer(conn *websocket.Conn, side string, opts Options) *peer {
	opts = opts.withDefaults()
	connID := id.NewConnectionID()
	log := opts.Logger.Named("ws").With(
		zap.String("conn_id", connID.String()),
		zap.String("side", side),
	)

	settings := opts.Breaker
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to resilience.State) {
			log.Warn("Write breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		}
	}

	conn.SetReadLimit(opts.ReadLimit)
	return &peer{
		id:           connID,
		conn:         conn,
		log:          log,
		metrics:      opts.Metrics,
		breaker:      resilience.New(side+"-"+connID.String(), settings),
		limiter:      opts.limiter(),
		writeTimeout: opts.WriteTimeout,
		done:         make(chan struct{}),
	}
}

// ID returns the connection id.
func (p *peer) ID() string {
	return p.id.String()
}

// Done is closed once the connection is closed.
func (p *peer) Done() <-chan struct{} {
	return p.done
}

func (p *peer) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *peer) write(f frame.Frame) error {
	if p.closed() {
		return transport.ErrDetached
	}
	data, err := frame.Encode(f)
	if err != nil {
		return err
	}

	err = p.breaker.Do(func() error {
		p.writeMu.Lock()
		defer p.writeMu.Unlock()
		if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			return err
		}
		return p.conn.WriteMessage(websocket.TextMessage, data)
	})
	if err != nil {
		p.metrics.RecordFrame(transportName, "out", "failed")
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	p.metrics.RecordFrame(transportName, "out", string(f.Type))
	return nil
}

// readLoop reads frames until the connection or ctx ends. A normal close
// returns nil.
func (p *peer) readLoop(ctx context.Context, handle func(frame.Frame)) error {
	stop := context.AfterFunc(ctx, func() { _ = p.close() })
	defer stop()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			closedHere := p.closed()
			_ = p.close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if closedHere || errors.Is(err, websocket.ErrCloseSent) ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				_ = p.close()
				return err
			}
		}

		f, err := frame.Decode(data)
		if err != nil {
			p.log.Warn("Dropping invalid frame", zap.Error(err))
			p.metrics.RecordFrame(transportName, "in", "invalid")
			continue
		}
		p.metrics.RecordFrame(transportName, "in", string(f.Type))
		handle(f)
	}
}

func (p *peer) close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		err = p.conn.Close()
		p.log.Debug("Connection closed")
	})
	return err
}
