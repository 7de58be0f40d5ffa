package bridge

import "github.com/GriffinCanCode/jsbridge/internal/bridge/codec"

// Callback receives the reply to a call. It runs on the goroutine that
// delivered the reply.
type Callback interface {
	OnResult(v any)
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(v any)

func (f CallbackFunc) OnResult(v any) { f(v) }

type expectCallback struct {
	shape codec.Shape
	fn    func(any)
}

func (c expectCallback) OnResult(v any)           { c.fn(v) }
func (c expectCallback) ResultShape() codec.Shape { return c.shape }

// Expect returns a callback whose reply payload is decoded against shape
// before fn sees it. A payload that does not fit arrives in its generic form.
func Expect(shape codec.Shape, fn func(v any)) Callback {
	return expectCallback{shape: shape, fn: fn}
}

func resultShape(cb Callback) codec.Shape {
	if s, ok := cb.(interface{ ResultShape() codec.Shape }); ok {
		return s.ResultShape()
	}
	return nil
}
