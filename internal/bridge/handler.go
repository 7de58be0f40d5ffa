package bridge

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/jsbridge/internal/bridge/codec"
)

// Handler serves a named request from the remote side. The returned value is
// sent back when the caller asked for a reply; an error drops the request.
type Handler interface {
	Handle(ctx context.Context, data any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, data any) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, data any) (any, error) { return f(ctx, data) }

type shapedHandler struct {
	Handler
	shape codec.Shape
}

func (h shapedHandler) InputShape() codec.Shape { return h.shape }

// WithInput declares the shape the payload is decoded against before h runs.
func WithInput(shape codec.Shape, h Handler) Handler {
	return shapedHandler{Handler: h, shape: shape}
}

// Typed builds a handler for a payload of Go type In, decoded through shape.
// A nil payload becomes the zero In. Any other payload that does not end up as
// an In fails with ErrInputType.
func Typed[In, Out any](shape codec.Shape, fn func(ctx context.Context, in In) (Out, error)) Handler {
	return WithInput(shape, HandlerFunc(func(ctx context.Context, data any) (any, error) {
		in, ok := data.(In)
		if !ok {
			if data != nil {
				return nil, fmt.Errorf("%w: want %T, got %T", ErrInputType, in, data)
			}
		}
		return fn(ctx, in)
	}))
}

func inputShape(h Handler) codec.Shape {
	if s, ok := h.(interface{ InputShape() codec.Shape }); ok {
		return s.InputShape()
	}
	return nil
}
