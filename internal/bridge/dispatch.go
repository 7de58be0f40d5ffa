package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsbridge/internal/bridge/envelope"
	"github.com/GriffinCanCode/jsbridge/internal/infrastructure/monitoring"
)

// deliver is the transport's entry point. With a dispatch limit each message
// gets its own goroutine once a slot is free, so a slow handler does not hold
// up the messages behind it. Waiting for a slot blocks the transport.
func (b *Bridge) deliver(raw string) {
	if b.sem == nil {
		b.HandleMessage(raw)
		return
	}

	ctx := b.context()
	if err := b.sem.Acquire(ctx, 1); err != nil {
		b.log.Debug("Dropping message, bridge closed", zap.Error(err))
		return
	}
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer b.sem.Release(1)
		b.HandleMessage(raw)
	}()
}

// HandleMessage routes one inbound envelope: replies resolve their pending
// call, requests run the named handler. It never panics and never returns an
// error; every failure is logged and drops that message.
func (b *Bridge) HandleMessage(raw string) {
	msg, err := envelope.Parse(raw)
	if err != nil {
		b.log.Warn("Dropping malformed message", zap.Error(err), zap.Int("size", len(raw)))
		b.metrics.RecordMessage("malformed")
		return
	}
	b.metrics.RecordMessage(msg.Kind().String())

	if msg.IsReply() {
		b.handleReply(msg)
		return
	}
	b.handleRequest(b.context(), msg)
}

func (b *Bridge) handleReply(msg envelope.Response) {
	cb, ok := b.calls.Take(msg.ResponseID())
	if !ok {
		b.log.Debug("No pending call for reply", zap.String("response_id", msg.ResponseID()))
		b.metrics.RecordReply("orphaned")
		return
	}
	b.metrics.AddPending(-1)

	value := msg.Decode(resultShape(cb))
	if err := notify(cb, value); err != nil {
		b.log.Error("Reply callback failed", zap.String("response_id", msg.ResponseID()), zap.Error(err))
		b.metrics.RecordReply("failed")
		return
	}
	b.metrics.RecordReply("resolved")
}

func (b *Bridge) handleRequest(ctx context.Context, msg envelope.Response) {
	name := msg.HandlerName()
	h, ok := b.handlers.Lookup(name)
	if !ok {
		b.log.Warn("No handler registered", zap.String("handler", name))
		b.metrics.RecordUnknownHandler()
		return
	}

	timer := monitoring.NewTimer(b.metrics, name)
	input := msg.Decode(inputShape(h))

	output, err := invoke(ctx, h, input)
	if err != nil {
		b.log.Error("Handler failed", zap.String("handler", name), zap.Error(err))
		timer.Stop("error")
		return
	}
	timer.Stop("ok")

	if !msg.WantsReply() {
		return
	}
	if b.State() == StateClosed {
		b.log.Debug("Not replying, bridge closed", zap.String("handler", name))
		return
	}

	reply, err := envelope.NewReply(msg.CallbackID(), output).Encode()
	if err == nil {
		err = b.transport.Send(reply)
	}
	if err != nil {
		b.log.Error("Failed to send reply",
			zap.String("handler", name),
			zap.String("callback_id", msg.CallbackID()),
			zap.Error(err),
		)
	}
}

func invoke(ctx context.Context, h Handler, input any) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return h.Handle(ctx, input)
}

func notify(cb Callback, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	cb.OnResult(value)
	return nil
}

func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrHandlerPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrHandlerPanic, r)
}
