package codec

import (
	"math"
	"math/big"
	"time"
)

// Shape is the expected target of a decode. Coerce converts a generic decoded
// value to the shape's Go type and reports whether it fit.
type Shape interface {
	Name() string
	Coerce(v any) (any, bool)
}

type shapeFunc struct {
	name   string
	coerce func(any) (any, bool)
}

func (s shapeFunc) Name() string { return s.name }
func (s shapeFunc) Coerce(v any) (any, bool) { return s.coerce(v) }

// Any accepts every value as decoded.
func Any() Shape {
	return shapeFunc{"any", func(v any) (any, bool) { return v, true }}
}

// Map expects a mapping.
func Map() Shape {
	return shapeFunc{"map", func(v any) (any, bool) {
		m, ok := v.(map[string]any)
		return m, ok
	}}
}

// List expects a sequence.
func List() Shape {
	return shapeFunc{"list", func(v any) (any, bool) {
		l, ok := v.([]any)
		return l, ok
	}}
}

// String expects text. Timestamps are handed back in their wire form.
func String() Shape {
	return shapeFunc{"string", func(v any) (any, bool) {
		switch x := v.(type) {
		case string:
			return x, true
		case time.Time:
			return x.UTC().Format(TimeLayout), true
		}
		return nil, false
	}}
}

// Int64 expects an integer, including integral floats.
func Int64() Shape {
	return shapeFunc{"int64", func(v any) (any, bool) {
		n, ok := ToInt64(v)
		return n, ok
	}}
}

// Float64 expects any number.
func Float64() Shape {
	return shapeFunc{"float64", func(v any) (any, bool) {
		f, ok := ToFloat64(v)
		return f, ok
	}}
}

// Bool expects a boolean.
func Bool() Shape {
	return shapeFunc{"bool", func(v any) (any, bool) {
		b, ok := v.(bool)
		return b, ok
	}}
}

// Time expects a timestamp.
func Time() Shape {
	return shapeFunc{"time", func(v any) (any, bool) {
		t, ok := v.(time.Time)
		return t, ok
	}}
}

// Decodable is implemented by record types that can be populated from a
// decoded mapping.
type Decodable interface {
	DecodeFields(f Fields) error
}

// Record expects a mapping and builds a T from it through DecodeFields.
// A T value passes through untouched.
func Record[T any, PT interface {
	*T
	Decodable
}](name string) Shape {
	return shapeFunc{name, func(v any) (any, bool) {
		switch x := v.(type) {
		case T:
			return x, true
		case *T:
			if x == nil {
				return nil, false
			}
			return *x, true
		case map[string]any:
			var rec T
			if err := PT(&rec).DecodeFields(Fields(x)); err != nil {
				return nil, false
			}
			return rec, true
		}
		return nil, false
	}}
}

// ToInt64 converts a decoded number to int64. Floats must be integral and
// big integers must fit.
func ToInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case *big.Int:
		if x != nil && x.IsInt64() {
			return x.Int64(), true
		}
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), true
		}
	}
	return 0, false
}

// ToFloat64 converts any decoded number to float64.
func ToFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case *big.Int:
		if x == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, true
	}
	return 0, false
}
