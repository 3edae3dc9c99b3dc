// Package redact masks sensitive keys in decoded JSON/YAML structures before
// they are written to log artifacts.
package redact

// Marker replaces the value of every sensitive key.
const Marker = "***REDACTED***"

// Value returns a copy of v in which every mapping entry whose key is in keys
// has its value replaced by Marker. Replaced values are not descended into;
// sequences are processed element-wise and scalars pass through. v is not
// modified.
func Value(v any, keys []string) any {
	sensitive := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		sensitive[k] = struct{}{}
	}
	return walk(v, sensitive)
}

func walk(v any, sensitive map[string]struct{}) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if _, ok := sensitive[k]; ok {
				out[k] = Marker
				continue
			}
			out[k] = walk(val, sensitive)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = walk(val, sensitive)
		}
		return out
	default:
		return v
	}
}
