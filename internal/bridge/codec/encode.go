package codec

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the wire form of timestamps: ISO-8601, UTC, millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Field is one named value of an Encodable record, in declaration order.
type Field struct {
	Name  string
	Value any
}

// Encodable is implemented by record types that cross the bridge as a
// mapping. Fields are written in the order returned.
type Encodable interface {
	EncodeFields() []Field
}

// Enum is implemented by enumeration types that cross the bridge by name.
type Enum interface {
	EnumName() string
}

// Encode converts v to its wire text. It never fails: values the codec has no
// mapping for are sent as their quoted default string form.
func Encode(v any) string {
	var sb strings.Builder
	encodeValue(&sb, v)
	return sb.String()
}

func encodeValue(sb *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("null")
	case string:
		writeQuoted(sb, x)
	case bool:
		sb.WriteString(strconv.FormatBool(x))
	case int:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case int8:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case int16:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case int32:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		sb.WriteString(strconv.FormatInt(x, 10))
	case uint:
		sb.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint8:
		sb.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint16:
		sb.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint32:
		sb.WriteString(strconv.FormatUint(uint64(x), 10))
	case uint64:
		sb.WriteString(strconv.FormatUint(x, 10))
	case float32:
		sb.WriteString(formatFloat(float64(x), 32))
	case float64:
		sb.WriteString(formatFloat(x, 64))
	case *big.Int:
		if x == nil {
			sb.WriteString("null")
			return
		}
		sb.WriteString(x.String())
	case json.Number:
		if _, ok := parseNumber(string(x)); ok {
			sb.WriteString(string(x))
			return
		}
		writeQuoted(sb, string(x))
	case time.Time:
		writeQuoted(sb, x.UTC().Format(TimeLayout))
	case map[string]any:
		encodeStringMap(sb, x)
	case []any:
		encodeList(sb, len(x), func(i int) any { return x[i] })
	default:
		encodeOther(sb, v)
	}
}

// encodeOther covers interface-implementing and reflected values. Pointers
// are checked for nil before any method is called on them.
func encodeOther(sb *strings.Builder, v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			sb.WriteString("null")
			return
		}
	}

	switch x := v.(type) {
	case Enum:
		guarded(sb, v, func(w *strings.Builder) { writeQuoted(w, x.EnumName()) })
		return
	case Encodable:
		guarded(sb, v, func(w *strings.Builder) { encodeFields(w, x.EncodeFields()) })
		return
	case encoding.TextMarshaler:
		guarded(sb, v, func(w *strings.Builder) {
			text, err := x.MarshalText()
			if err != nil {
				panic(err)
			}
			writeQuoted(w, string(text))
		})
		return
	}

	switch rv.Kind() {
	case reflect.Pointer:
		encodeValue(sb, rv.Elem().Interface())
	case reflect.Map:
		if rv.IsNil() {
			sb.WriteString("null")
			return
		}
		encodeReflectMap(sb, rv)
	case reflect.Slice:
		if rv.IsNil() {
			sb.WriteString("null")
			return
		}
		encodeList(sb, rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Array:
		encodeList(sb, rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.String:
		writeQuoted(sb, rv.String())
	case reflect.Bool:
		sb.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Named integer types with a String method are the Go enum idiom.
		if s, ok := v.(fmt.Stringer); ok {
			writeQuoted(sb, s.String())
			return
		}
		sb.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if s, ok := v.(fmt.Stringer); ok {
			writeQuoted(sb, s.String())
			return
		}
		sb.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		sb.WriteString(formatFloat(rv.Float(), 32))
	case reflect.Float64:
		sb.WriteString(formatFloat(rv.Float(), 64))
	default:
		writeDefault(sb, v)
	}
}

// guarded runs a user-supplied encoding step into a scratch builder so a
// panicking method degrades to the default string form instead of leaving
// half a value on the wire.
func guarded(sb *strings.Builder, v any, fn func(*strings.Builder)) {
	var scratch strings.Builder
	ok := func() (ok bool) {
		defer func() {
			if recover() != nil {
				ok = false
			}
		}()
		fn(&scratch)
		return true
	}()
	if !ok {
		writeDefault(sb, v)
		return
	}
	sb.WriteString(scratch.String())
}

func writeDefault(sb *strings.Builder, v any) {
	writeQuoted(sb, fmt.Sprint(v))
}

func encodeFields(sb *strings.Builder, fields []Field) {
	sb.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeQuoted(sb, f.Name)
		sb.WriteByte(':')
		encodeValue(sb, f.Value)
	}
	sb.WriteByte('}')
}

func encodeStringMap(sb *strings.Builder, m map[string]any) {
	if m == nil {
		sb.WriteString("null")
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeQuoted(sb, k)
		sb.WriteByte(':')
		encodeValue(sb, m[k])
	}
	sb.WriteByte('}')
}

// encodeReflectMap stringifies keys with fmt.Sprint, so map[int]string{1: "one"}
// becomes {"1":"one"}.
func encodeReflectMap(sb *strings.Builder, rv reflect.Value) {
	type entry struct {
		key   string
		value any
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{fmt.Sprint(iter.Key().Interface()), iter.Value().Interface()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	sb.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeQuoted(sb, e.key)
		sb.WriteByte(':')
		encodeValue(sb, e.value)
	}
	sb.WriteByte('}')
}

func encodeList(sb *strings.Builder, n int, at func(int) any) {
	sb.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		encodeValue(sb, at(i))
	}
	sb.WriteByte(']')
}

// formatFloat follows the JSON number forms used by encoding/json but always
// keeps a decimal point or exponent, so the value decodes as a float again.
func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}

	format := byte('f')
	if abs := math.Abs(f); abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) || bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			format = 'e'
		}
	}

	s := strconv.FormatFloat(f, format, -1, bits)
	if format == 'e' {
		// clean up e-09 to e-9
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

const hex = "0123456789abcdef"

// writeQuoted writes s as a JSON string literal that is also safe inside a
// JavaScript string literal: line and paragraph separators are escaped too.
func writeQuoted(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\u2028', '\u2029':
			sb.WriteString(`\u202`)
			sb.WriteByte(hex[r&0xF])
		default:
			if r < 0x20 || (r >= 0x7f && r < 0xa0) {
				sb.WriteString(`\u00`)
				sb.WriteByte(hex[r>>4])
				sb.WriteByte(hex[r&0xF])
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}
