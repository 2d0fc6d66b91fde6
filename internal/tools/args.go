package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Args holds validated call arguments. Numbers are float64, integers int64.
type Args map[string]any

// String returns the string argument name, or "" when absent
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Float returns a numeric argument and whether it was present
func (a Args) Float(name string) (float64, bool) {
	switch v := a[name].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int returns an integer argument and whether it was present
func (a Args) Int(name string) (int, bool) {
	switch v := a[name].(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Bool returns a boolean argument, or def when absent
func (a Args) Bool(name string, def bool) bool {
	if b, ok := a[name].(bool); ok {
		return b
	}
	return def
}

// Decimal returns a numeric argument as a decimal
func (a Args) Decimal(name string) (decimal.Decimal, bool) {
	f, ok := a.Float(name)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// Has reports whether name was supplied
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// coerce converts a raw JSON-decoded value to the declared type.
// Models often quote numbers and booleans, so numeric and boolean strings are accepted.
func coerce(v any, t ParamType) (any, bool) {
	switch t {
	case TypeString:
		s, ok := v.(string)
		return s, ok
	case TypeNumber:
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		return f, true
	case TypeInteger:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return int64(f), true
	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, true
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			return parsed, err == nil
		}
		return nil, false
	case TypeArray:
		arr, ok := v.([]any)
		return arr, ok
	case TypeObject:
		obj, ok := v.(map[string]any)
		return obj, ok
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
