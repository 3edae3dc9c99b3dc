// File: internal/stack/document.go
// Brief: Stack document model and reserved-key accessors.

package stack

import "fmt"

const (
	includeKey    = "include"
	routingKey    = "routing"
	agentsKey     = "agents"
	invariantsKey = "cfms_invariants"
	metaKey       = "meta"
)

// Document is a decoded stack document. After Resolve it never carries the
// include key.
type Document map[string]any

// Agent is one entry of the agents sequence.
type Agent struct {
	Name  string
	Model string
	Raw   map[string]any
}

// Routing returns routing.persona and routing.role, empty when absent or not
// strings.
func (d Document) Routing() (persona, role string) {
	r, _ := d[routingKey].(map[string]any)
	persona, _ = r["persona"].(string)
	role, _ = r["role"].(string)
	return persona, role
}

// RoutingSection returns the routing mapping, or an empty mapping.
func (d Document) RoutingSection() map[string]any {
	return d.section(routingKey)
}

// Invariants returns the opaque cfms_invariants mapping, or an empty mapping.
func (d Document) Invariants() map[string]any {
	return d.section(invariantsKey)
}

// Meta returns the opaque meta mapping, or an empty mapping.
func (d Document) Meta() map[string]any {
	return d.section(metaKey)
}

func (d Document) section(key string) map[string]any {
	if m, ok := d[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Agents returns the declared agents in order. Entries that are not mappings
// are skipped.
func (d Document) Agents() []Agent {
	raw, _ := d[agentsKey].([]any)
	out := make([]Agent, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Agent{
			Name:  scalarString(m["name"]),
			Model: scalarString(m["model"]),
			Raw:   m,
		})
	}
	return out
}

// Matches reports whether the document routes persona/role. Only string
// routing values match; 123 never matches "123".
func (d Document) Matches(persona, role string) bool {
	r, _ := d[routingKey].(map[string]any)
	p, pok := r["persona"].(string)
	ro, rok := r["role"].(string)
	return pok && rok && p == persona && ro == role
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// normalize converts yaml.v3 output into the JSON-compatible shapes the rest
// of the package expects (string-keyed maps, []any sequences).
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
