package domain

import (
	"encoding/json"
	"time"
)

// normalizeValue converts a caller-supplied value into the canonical in-memory
// representation for a kind (string, int64, float64, bool, time.Time). The
// second return reports whether the value is acceptable for the kind.
func normalizeValue(kind Kind, value any) (any, bool) {
	switch kind {
	case KindString:
		if s, ok := value.(string); ok {
			return s, true
		}
	case KindInt:
		switch v := value.(type) {
		case int:
			return int64(v), true
		case int8:
			return int64(v), true
		case int16:
			return int64(v), true
		case int32:
			return int64(v), true
		case int64:
			return v, true
		case uint:
			return int64(v), true
		case uint8:
			return int64(v), true
		case uint16:
			return int64(v), true
		case uint32:
			return int64(v), true
		}
	case KindFloat:
		switch v := value.(type) {
		case float32:
			return float64(v), true
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	case KindBool:
		if b, ok := value.(bool); ok {
			return b, true
		}
	case KindTime:
		if t, ok := value.(time.Time); ok {
			return t.UTC(), true
		}
	}
	return nil, false
}

// coerceStored converts a value read back from a gateway into the canonical
// representation. Gateways that round-trip through JSON hand back float64 for
// numbers and RFC 3339 strings for timestamps; a nil value (column never
// written) yields the kind's zero value.
func coerceStored(kind Kind, raw any) (any, bool) {
	if raw == nil {
		return zeroValue(kind), true
	}
	if v, ok := normalizeValue(kind, raw); ok {
		return v, true
	}
	switch kind {
	case KindInt:
		switch v := raw.(type) {
		case float64:
			return int64(v), true
		case json.Number:
			i, err := v.Int64()
			if err != nil {
				return nil, false
			}
			return i, true
		}
	case KindFloat:
		if v, ok := raw.(json.Number); ok {
			f, err := v.Float64()
			if err != nil {
				return nil, false
			}
			return f, true
		}
	case KindTime:
		if s, ok := raw.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, false
			}
			return t.UTC(), true
		}
	}
	return nil, false
}

func zeroValue(kind Kind) any {
	switch kind {
	case KindString:
		return ""
	case KindInt:
		return int64(0)
	case KindFloat:
		return float64(0)
	case KindBool:
		return false
	case KindTime:
		return time.Time{}
	default:
		return nil
	}
}

func equalValue(a, b any) bool {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Equal(bt)
	}
	return a == b
}
