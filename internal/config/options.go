package config

import "math"

// OptString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func OptString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// OptBool extracts a boolean option. Missing or mistyped values are false.
func OptBool(opts map[string]any, key string) bool {
	b, _ := opts[key].(bool)
	return b
}

// OptInt extracts an integer option. YAML decodes whole numbers as int, JSON
// as float64; both are accepted. Missing or mistyped values yield def.
func OptInt(opts map[string]any, key string, def int) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	}
	return def
}

// OptFloat extracts a numeric option. Missing or mistyped values yield def.
func OptFloat(opts map[string]any, key string, def float64) float64 {
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}
