package codec

import (
	"encoding/json"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// treeAPI keeps numbers as json.Number so the codec picks the numeric class.
var treeAPI = sonic.Config{UseNumber: true}.Froze()

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

// Decode converts wire text back to a generic value. It is total: input that
// is not valid wire text is returned unchanged as a string.
//
// Decoded values are one of nil, bool, int32, int64, *big.Int, float64,
// string, time.Time, []any or map[string]any.
func Decode(s string) any {
	v, ok := decode(s)
	if !ok {
		return s
	}
	return v
}

// DecodeAs decodes s and coerces the result to shape. When the value does not
// fit the shape the generic value is returned.
func DecodeAs(s string, shape Shape) any {
	v := Decode(s)
	if shape == nil {
		return v
	}
	if c, ok := shape.Coerce(v); ok {
		return c
	}
	return v
}

// Valid reports whether s is well-formed wire text.
func Valid(s string) bool {
	_, ok := decode(s)
	return ok
}

func decode(s string) (any, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil, false
	}

	switch t {
	case "null":
		return nil, true
	case "true":
		return true, true
	case "false":
		return false, true
	}

	first, last := t[0], t[len(t)-1]
	switch {
	case first == '{' && last == '}':
		var m map[string]any
		if err := treeAPI.UnmarshalFromString(t, &m); err != nil {
			return nil, false
		}
		return normalizeMap(m), true
	case first == '[' && last == ']':
		var l []any
		if err := treeAPI.UnmarshalFromString(t, &l); err != nil {
			return nil, false
		}
		return normalizeList(l), true
	case first == '"' && last == '"' && len(t) >= 2:
		var str string
		if err := treeAPI.UnmarshalFromString(t, &str); err != nil {
			return nil, false
		}
		return decodeString(str), true
	default:
		return parseNumber(t)
	}
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return normalizeMap(x)
	case []any:
		return normalizeList(x)
	case string:
		return decodeString(x)
	case json.Number:
		if n, ok := parseNumber(string(x)); ok {
			return n
		}
		return string(x)
	case float64:
		return x
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	for k, v := range m {
		m[k] = normalize(v)
	}
	return m
}

func normalizeList(l []any) []any {
	if l == nil {
		return []any{}
	}
	for i, v := range l {
		l[i] = normalize(v)
	}
	return l
}

func decodeString(s string) any {
	if timestampPattern.MatchString(s) {
		if t, err := time.Parse(TimeLayout, s); err == nil {
			return t.UTC()
		}
	}
	return s
}

// parseNumber picks the narrowest numeric class: tokens with a decimal point
// or exponent are float64, integers are int32 when they fit, then int64, then
// *big.Int.
func parseNumber(t string) (any, bool) {
	if t == "" || strings.IndexFunc(t, notNumeric) >= 0 {
		return nil, false
	}

	if strings.ContainsAny(t, ".eE") {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, false
		}
		return f, true
	}

	n, err := strconv.ParseInt(t, 10, 64)
	if err == nil {
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), true
		}
		return n, true
	}

	b, ok := new(big.Int).SetString(t, 10)
	if !ok {
		return nil, false
	}
	return b, true
}

func notNumeric(r rune) bool {
	return !(r >= '0' && r <= '9' || r == '-' || r == '+' || r == '.' || r == 'e' || r == 'E')
}
