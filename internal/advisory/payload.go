package advisory

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// StringList is a payload field that may arrive absent, as a scalar, or as a
// sequence. It is normalized once, when the Payload is built.
type StringList []string

// First returns the first element and whether one exists.
func (l StringList) First() (string, bool) {
	if len(l) == 0 {
		return "", false
	}
	return l[0], true
}

// Payload is the normalized view of a request object.
type Payload struct {
	Objectives StringList
	Blockers   StringList
	// Context and RiskLevel are empty when absent or falsy.
	Context   string
	RiskLevel string

	Raw map[string]any
}

// NewPayload normalizes a decoded request object. A nil object is treated as
// empty.
func NewPayload(raw map[string]any) Payload {
	if raw == nil {
		raw = map[string]any{}
	}
	return Payload{
		Objectives: toStringList(raw["objectives"]),
		Blockers:   toStringList(raw["blockers"]),
		Context:    optionalString(raw["context"]),
		RiskLevel:  optionalString(raw["risk_level"]),
		Raw:        raw,
	}
}

func toStringList(v any) StringList {
	switch t := v.(type) {
	case nil:
		return StringList{}
	case []any:
		out := make(StringList, 0, len(t))
		for _, item := range t {
			out = append(out, stringify(item))
		}
		return out
	case []string:
		return append(StringList{}, t...)
	default:
		return StringList{stringify(t)}
	}
}

func optionalString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	case int:
		if t == 0 {
			return ""
		}
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
	case []any:
		if len(t) == 0 {
			return ""
		}
	case map[string]any:
		if len(t) == 0 {
			return ""
		}
	}
	return stringify(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case map[string]any, []any:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	default:
		return fmt.Sprint(t)
	}
}
