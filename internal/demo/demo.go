// Package demo is the handler set the bundled binaries expose to pages.
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/jsbridge/internal/bridge"
	"github.com/GriffinCanCode/jsbridge/internal/bridge/codec"
)

// SumArgs is the input of the Sum handler.
type SumArgs struct {
	A int64
	B int64
}

// DecodeFields reads a and b.
func (s *SumArgs) DecodeFields(f codec.Fields) error {
	var err error
	if s.A, err = f.Int64("a"); err != nil {
		return err
	}
	s.B, err = f.Int64("b")
	return err
}

// EncodeFields writes a and b.
func (s SumArgs) EncodeFields() []codec.Field {
	return []codec.Field{{Name: "a", Value: s.A}, {Name: "b", Value: s.B}}
}

// Names lists the handlers Register installs.
var Names = []string{"Echo", "Now", "Sum"}

// Register installs the demo handlers on b.
func Register(b *bridge.Bridge) error {
	handlers := map[string]bridge.Handler{
		"Sum": bridge.Typed(codec.Record[SumArgs]("sum"), func(_ context.Context, in SumArgs) (int64, error) {
			return in.A + in.B, nil
		}),
		"Echo": bridge.HandlerFunc(func(_ context.Context, data any) (any, error) {
			return data, nil
		}),
		"Now": bridge.HandlerFunc(func(context.Context, any) (any, error) {
			return time.Now().UTC().Truncate(time.Millisecond), nil
		}),
	}
	for _, name := range Names {
		if err := b.Register(name, handlers[name]); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}
