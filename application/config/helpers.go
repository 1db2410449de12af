// Package config reads values from the free-form config table of a
// discovery manifest entry. Tables decoded from YAML hold int values; tables
// decoded from JSON hold float64 or json.Number; every accessor accepts each.
package config

import (
	"encoding/json"

	"github.com/reglet-dev/capkit/domain/errors"
)

// Config is the config table of a manifest entry.
type Config = map[string]any

// GetString extracts a string, returning (value, found).
func GetString(config Config, key string) (string, bool) {
	s, ok := config[key].(string)
	return s, ok
}

// GetInt extracts an int from any integral numeric representation.
func GetInt(config Config, key string) (int, bool) {
	switch n := config[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true //nolint:gosec // config values are small
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// GetBool extracts a bool, returning (value, found).
func GetBool(config Config, key string) (bool, bool) {
	b, ok := config[key].(bool)
	return b, ok
}

// GetStringSlice extracts a list of strings.
func GetStringSlice(config Config, key string) ([]string, bool) {
	switch v := config[key].(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, s)
		}
		return result, true
	default:
		return nil, false
	}
}

// GetStringDefault extracts a string or returns the default value.
func GetStringDefault(config Config, key, defaultValue string) string {
	if s, ok := GetString(config, key); ok && s != "" {
		return s
	}
	return defaultValue
}

// GetIntDefault extracts an int or returns the default value.
func GetIntDefault(config Config, key string, defaultValue int) int {
	if i, ok := GetInt(config, key); ok {
		return i
	}
	return defaultValue
}

// MustGetString extracts a required non-empty string. The error is a
// ValidationError naming the key.
func MustGetString(config Config, key string) (string, error) {
	s, ok := GetString(config, key)
	if !ok || s == "" {
		return "", errors.New(errors.KindValidationError, "config field %q must be a non-empty string", key).
			WithDetail("field", key)
	}
	return s, nil
}
