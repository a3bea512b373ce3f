package store

import "time"

// AsInt coerces a stored numeric value to int. Firestore hands back int64,
// the JSONB driver float64, the memory driver whatever was written.
func AsInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	}
	return 0
}

// AsString coerces a stored value to string, empty when absent or not one.
func AsString(v any) string {
	s, _ := v.(string)
	return s
}

// AsInt64 coerces a stored numeric value to int64.
func AsInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// AsTime parses a stored timestamp. Timestamps are written as RFC3339 UTC
// strings so every driver orders them the same way; native time values are
// passed through.
func AsTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// FormatTime renders a timestamp the way AsTime expects it back. The
// fractional part is fixed-width so string ordering stays chronological.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// LookupPath walks a dot-separated path through nested maps.
func LookupPath(data map[string]any, path string) (any, bool) {
	cur := any(data)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		key := path[start:i]
		start = i + 1
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
