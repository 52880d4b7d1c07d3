package config

// DeepMerge returns a new map holding base overlaid with top. Nested maps are merged
// key by key; every other value in top, lists included, replaces what base had.
// Neither input is modified.
func DeepMerge(base, top map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(top))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range top {
		topMap, topIsMap := v.(map[string]any)
		baseMap, baseIsMap := out[k].(map[string]any)
		if topIsMap && baseIsMap {
			out[k] = DeepMerge(baseMap, topMap)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
