package log

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
)

// AttrsFromWire converts a decoded JSON attribute map into slog attributes
// ordered by key. Numbers decoded as json.Number become int64 when integral
// and float64 otherwise; nested objects become groups.
func AttrsFromWire(m map[string]any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		attrs = append(attrs, attrFromWire(k, m[k]))
	}
	return attrs
}

func attrFromWire(key string, v any) slog.Attr {
	switch val := v.(type) {
	case string:
		return slog.String(key, val)
	case bool:
		return slog.Bool(key, val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return slog.Int64(key, i)
		}
		if f, err := val.Float64(); err == nil {
			return slog.Float64(key, f)
		}
		return slog.String(key, val.String())
	case float64:
		if val == float64(int64(val)) {
			return slog.Int64(key, int64(val))
		}
		return slog.Float64(key, val)
	case map[string]any:
		group := AttrsFromWire(val)
		args := make([]any, len(group))
		for i, a := range group {
			args[i] = a
		}
		return slog.Group(key, args...)
	default:
		return slog.Any(key, val)
	}
}
