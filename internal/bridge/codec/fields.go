package codec

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingField is returned when a required record field is absent.
	ErrMissingField = errors.New("missing field")

	// ErrFieldType is returned when a record field has the wrong type.
	ErrFieldType = errors.New("wrong field type")
)

// Fields is the decoded mapping handed to Decodable.DecodeFields.
type Fields map[string]any

// Has reports whether name is present, even with a null value.
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// String returns the text field name.
func (f Fields) String(name string) (string, error) {
	v, err := f.lookup(name)
	if err != nil {
		return "", err
	}
	if c, ok := String().Coerce(v); ok {
		return c.(string), nil
	}
	return "", typeError(name, "string", v)
}

// Int64 returns the integer field name.
func (f Fields) Int64(name string) (int64, error) {
	v, err := f.lookup(name)
	if err != nil {
		return 0, err
	}
	if n, ok := ToInt64(v); ok {
		return n, nil
	}
	return 0, typeError(name, "integer", v)
}

// Int returns the integer field name as an int.
func (f Fields) Int(name string) (int, error) {
	n, err := f.Int64(name)
	return int(n), err
}

// Float64 returns the numeric field name.
func (f Fields) Float64(name string) (float64, error) {
	v, err := f.lookup(name)
	if err != nil {
		return 0, err
	}
	if n, ok := ToFloat64(v); ok {
		return n, nil
	}
	return 0, typeError(name, "number", v)
}

// Bool returns the boolean field name.
func (f Fields) Bool(name string) (bool, error) {
	v, err := f.lookup(name)
	if err != nil {
		return false, err
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, typeError(name, "bool", v)
}

// Time returns the timestamp field name.
func (f Fields) Time(name string) (time.Time, error) {
	v, err := f.lookup(name)
	if err != nil {
		return time.Time{}, err
	}
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	return time.Time{}, typeError(name, "timestamp", v)
}

// Map returns the mapping field name.
func (f Fields) Map(name string) (map[string]any, error) {
	v, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	return nil, typeError(name, "map", v)
}

// List returns the sequence field name.
func (f Fields) List(name string) ([]any, error) {
	v, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	if l, ok := v.([]any); ok {
		return l, nil
	}
	return nil, typeError(name, "list", v)
}

func (f Fields) lookup(name string) (any, error) {
	v, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return v, nil
}

func typeError(name, want string, got any) error {
	return fmt.Errorf("%w: %s: want %s, got %T", ErrFieldType, name, want, got)
}
