package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/thushan/chillm/internal/core/constants"
	"github.com/thushan/chillm/internal/env"
)

// dropFunc is told about every value that failed coercion and was left out.
type dropFunc func(key string, value any, err error)

// sanitize coerces the known keys of one source into their expected types. Values
// that cannot be coerced are dropped rather than zeroed; unknown keys pass through.
func sanitize(raw map[string]any, drop dropFunc) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		key := strings.ToLower(k)
		switch key {
		case constants.KeyDefaultModel:
			setString(out, key, key, v, drop)
		case constants.KeyPreferredContext, constants.KeyPreferredMaxTokens:
			setPositiveInt(out, key, key, v, drop)
		case constants.KeyResolutionMode:
			if mode, err := coerceMode(v); err == nil {
				out[key] = mode
			} else {
				drop(key, v, err)
			}
		case constants.KeyAllowGlobal:
			if b, err := coerceBool(v); err == nil {
				out[key] = b
			} else {
				drop(key, v, err)
			}
		case constants.KeyDownloadedModels:
			if list, err := coerceStringList(v, false); err == nil {
				out[key] = list
			} else {
				drop(key, v, err)
			}
		case constants.KeyGGUFPaths:
			if list, err := coerceStringList(v, true); err == nil {
				out[key] = list
			} else {
				drop(key, v, err)
			}
		case constants.KeyProvider:
			m, err := cast.ToStringMapE(v)
			if err != nil {
				drop(key, v, err)
				continue
			}
			out[key] = sanitizeProvider(m, key, drop)
		case constants.KeyProviderProfiles:
			if profiles, err := sanitizeProfiles(v, drop); err == nil {
				out[key] = profiles
			} else {
				drop(key, v, err)
			}
		case constants.KeyGeneration:
			m, err := cast.ToStringMapE(v)
			if err != nil {
				drop(key, v, err)
				continue
			}
			out[key] = sanitizeGeneration(m, key, drop)
		default:
			out[key] = v
		}
	}
	return out
}

func sanitizeProvider(raw map[string]any, prefix string, drop dropFunc) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		key := strings.ToLower(k)
		path := prefix + "." + key
		switch key {
		case "type", "host", "api_key", "model", "model_path", "base_url", "org_id", "name", "binary":
			setString(out, key, path, v, drop)
		case "port", "context_window", "output_tokens":
			setPositiveInt(out, key, path, v, drop)
		case "n_gpu_layers", "priority":
			if i, err := coerceInt(v); err == nil {
				out[key] = i
			} else {
				drop(path, v, err)
			}
		case "timeout":
			if secs, err := coerceSeconds(v); err == nil {
				out[key] = secs
			} else {
				drop(path, v, err)
			}
		case "tags":
			if list, err := coerceStringList(v, false); err == nil {
				out[key] = list
			} else {
				drop(path, v, err)
			}
		case "args":
			// a single string is split on whitespace, like a shell would
			if args, err := cast.ToStringSliceE(v); err == nil {
				out[key] = toAnySlice(args)
			} else {
				drop(path, v, err)
			}
		default:
			out[key] = v
		}
	}
	return out
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func sanitizeProfiles(v any, drop dropFunc) ([]any, error) {
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("%s[%d]", constants.KeyProviderProfiles, i)
		m, err := cast.ToStringMapE(item)
		if err != nil {
			drop(path, item, err)
			continue
		}
		out = append(out, sanitizeProvider(m, path, drop))
	}
	return out, nil
}

func sanitizeGeneration(raw map[string]any, prefix string, drop dropFunc) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		key := strings.ToLower(k)
		path := prefix + "." + key
		switch key {
		case "temperature", "top_p", "repeat_penalty":
			if f, err := coerceFloat(v); err == nil {
				out[key] = f
			} else {
				drop(path, v, err)
			}
		case "max_tokens", "top_k":
			setPositiveInt(out, key, path, v, drop)
		default:
			out[key] = v
		}
	}
	return out
}

func setString(out map[string]any, key, path string, v any, drop dropFunc) {
	s, err := coerceString(v)
	if err != nil {
		drop(path, v, err)
		return
	}
	out[key] = s
}

func setPositiveInt(out map[string]any, key, path string, v any, drop dropFunc) {
	i, err := coerceInt(v)
	if err == nil && i <= 0 {
		err = fmt.Errorf("must be positive, got %d", i)
	}
	if err != nil {
		drop(path, v, err)
		return
	}
	out[key] = i
}

func coerceString(v any) (string, error) {
	switch v.(type) {
	case map[string]any, []any:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty value")
	}
	return s, nil
}

func coerceInt(v any) (int, error) {
	switch t := v.(type) {
	case bool:
		return 0, fmt.Errorf("expected an integer, got bool")
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("expected an integer, got %v", t)
		}
	case float32:
		if float64(t) != math.Trunc(float64(t)) {
			return 0, fmt.Errorf("expected an integer, got %v", t)
		}
	case string:
		return cast.ToIntE(strings.TrimSpace(t))
	}
	return cast.ToIntE(v)
}

func coerceFloat(v any) (float64, error) {
	if _, ok := v.(bool); ok {
		return 0, fmt.Errorf("expected a number, got bool")
	}
	if s, ok := v.(string); ok {
		return cast.ToFloat64E(strings.TrimSpace(s))
	}
	return cast.ToFloat64E(v)
}

func coerceBool(v any) (bool, error) {
	if s, ok := v.(string); ok {
		if b, ok := env.ParseBool(s); ok {
			return b, nil
		}
		return false, fmt.Errorf("expected a boolean, got %q", s)
	}
	return cast.ToBoolE(v)
}

func coerceMode(v any) (string, error) {
	s, err := coerceString(v)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(s) {
	case constants.ModeProjectFirst:
		return constants.ModeProjectFirst, nil
	case constants.ModeEnvFirst:
		return constants.ModeEnvFirst, nil
	}
	return "", fmt.Errorf("unknown resolution mode %q", s)
}

// coerceSeconds accepts a number of seconds or a Go duration string.
func coerceSeconds(v any) (float64, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if d, err := time.ParseDuration(s); err == nil {
			if d <= 0 {
				return 0, fmt.Errorf("timeout must be positive")
			}
			return d.Seconds(), nil
		}
	}
	f, err := coerceFloat(v)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("timeout must be positive")
	}
	return f, nil
}

// coerceStringList accepts a list, or a single string split on the OS path list
// separator and commas when splitPaths is set.
func coerceStringList(v any, splitPaths bool) ([]any, error) {
	if s, ok := v.(string); ok {
		var parts []string
		if splitPaths {
			parts = splitPathList(s)
		} else {
			parts = strings.Split(s, ",")
		}
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	items, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

func splitPathList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == os.PathListSeparator || r == ','
	})
}
