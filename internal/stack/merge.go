// File: internal/stack/merge.go
// Brief: Structural deep merge over decoded documents.

package stack

// Kind tags a decoded document value.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindArray
)

// KindOf classifies a value produced by the document decoders.
func KindOf(v any) Kind {
	switch v.(type) {
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	default:
		return KindScalar
	}
}

// Merge returns base overlaid with incoming. Keys present in both merge
// recursively when both values are objects; otherwise the incoming value wins.
// Arrays are replaced wholesale. Neither input is modified.
func Merge(base, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(incoming))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range incoming {
		if prev, ok := out[k]; ok && KindOf(prev) == KindObject && KindOf(v) == KindObject {
			out[k] = Merge(prev.(map[string]any), v.(map[string]any))
			continue
		}
		out[k] = v
	}
	return out
}
