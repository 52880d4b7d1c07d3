package env

import (
	"os"
	"strconv"
	"strings"
)

// LookupFunc matches os.LookupEnv so tests can substitute a fixed environment.
type LookupFunc func(key string) (string, bool)

func OS() LookupFunc {
	return os.LookupEnv
}

func FromMap(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// Value returns the trimmed value; a variable set to whitespace counts as unset.
func (f LookupFunc) Value(key string) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

// ParseBool accepts the usual truthy spellings; ok is false when s is not recognised.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "y":
		return true, true
	case "0", "false", "no", "off", "n":
		return false, true
	}
	return false, false
}

func GetEnvOrDefault(key, defaultValue string) string {
	if v, ok := OS().Value(key); ok {
		return v
	}
	return defaultValue
}

func GetEnvIntOrDefault(key string, defaultValue int) int {
	if v, ok := OS().Value(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func GetEnvBoolOrDefault(key string, defaultValue bool) bool {
	if v, ok := OS().Value(key); ok {
		if b, ok := ParseBool(v); ok {
			return b
		}
	}
	return defaultValue
}
