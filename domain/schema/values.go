package schema

// Values is a parameter set that passed Validate. Integer fields hold int64,
// number fields hold float64, arrays hold []any and objects hold map[string]any.
type Values map[string]any

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// String returns the string stored at key.
func (v Values) String(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// StringOr returns the string stored at key or fallback.
func (v Values) StringOr(key, fallback string) string {
	if s, ok := v.String(key); ok {
		return s
	}
	return fallback
}

// Int returns the integer stored at key, accepting the widths Validate may produce.
func (v Values) Int(key string) (int64, bool) {
	switch n := v[key].(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// Float returns the number stored at key.
func (v Values) Float(key string) (float64, bool) {
	switch n := v[key].(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Bool returns the boolean stored at key.
func (v Values) Bool(key string) (bool, bool) {
	b, ok := v[key].(bool)
	return b, ok
}

// Slice returns the array stored at key.
func (v Values) Slice(key string) ([]any, bool) {
	s, ok := v[key].([]any)
	return s, ok
}

// Strings returns the array stored at key when every element is a string.
func (v Values) Strings(key string) ([]string, bool) {
	arr, ok := v.Slice(key)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Object returns the nested object stored at key.
func (v Values) Object(key string) (Values, bool) {
	m, ok := v[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return Values(m), true
}

// Clone returns a deep copy.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	return Values(copyValue(map[string]any(v)).(map[string]any))
}
