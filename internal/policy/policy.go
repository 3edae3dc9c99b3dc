// Package policy loads the codex policy document: the read-only knobs each
// pipeline stage consults (payload ceiling, advisory defaults, redaction keys,
// digest bounds). A Policy is loaded once per invocation and passed down
// explicitly; nothing in this module reads it from package state.
package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

// RelPath is the policy document location relative to the process root.
const RelPath = "config/policies.yaml"

// EnvironmentRelPath is the environment document copied into digests.
const EnvironmentRelPath = "config/environment.yaml"

const DefaultSummaryPrefix = "Advisor Insight"

type Relay struct {
	// MaxPayloadBytes bounds the encoded payload; zero disables the check.
	MaxPayloadBytes int `json:"max_payload_bytes,omitempty" validate:"gte=0"`
}

type Executor struct {
	SummaryPrefix  string   `json:"summary_prefix,omitempty"`
	DefaultActions []string `json:"default_actions,omitempty"`
}

type Logger struct {
	RedactKeys []string `json:"redact_keys,omitempty" validate:"dive,required"`
}

type Digest struct {
	// MaxRuns caps the digest when no explicit limit is given. Nil means unbounded.
	MaxRuns        *int `json:"max_runs,omitempty" validate:"omitempty,gte=0"`
	IncludeHistory bool `json:"include_history,omitempty"`
}

// Policy is the decoded policy document. Sections absent from the file are
// nil so reports can echo exactly what was applied.
type Policy struct {
	Relay    *Relay    `json:"relay,omitempty"`
	Executor *Executor `json:"executor,omitempty"`
	Logger   *Logger   `json:"logger,omitempty"`
	Digest   *Digest   `json:"digest,omitempty"`
}

var validate = validator.New()

// Load reads the policy document at path. A missing file yields an empty
// policy; an unreadable or malformed one is an error.
func Load(path string) (*Policy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("policy path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Policy{}, nil
		}
		return nil, err
	}
	return Parse(raw, path)
}

// LoadFromRoot loads <root>/config/policies.yaml.
func LoadFromRoot(root string) (*Policy, error) {
	return Load(filepath.Join(root, RelPath))
}

// Parse decodes and validates a policy document. source names the document in errors.
func Parse(raw []byte, source string) (*Policy, error) {
	var p Policy
	if len(strings.TrimSpace(string(raw))) == 0 {
		return &p, nil
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", source, err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("invalid policy %s: %w", source, err)
	}
	return &p, nil
}

// MaxPayloadBytes returns the relay ceiling, zero when unset.
func (p *Policy) MaxPayloadBytes() int {
	if p == nil || p.Relay == nil {
		return 0
	}
	return p.Relay.MaxPayloadBytes
}

// ExecutorPolicy returns the executor section, or an empty one.
func (p *Policy) ExecutorPolicy() Executor {
	if p == nil || p.Executor == nil {
		return Executor{}
	}
	return *p.Executor
}

// RedactKeys returns the logger's sensitive key set.
func (p *Policy) RedactKeys() []string {
	if p == nil || p.Logger == nil {
		return nil
	}
	return append([]string(nil), p.Logger.RedactKeys...)
}

// DigestPolicy returns the digest section, or an empty one.
func (p *Policy) DigestPolicy() Digest {
	if p == nil || p.Digest == nil {
		return Digest{}
	}
	return *p.Digest
}

// Prefix returns the configured summary prefix or the default.
func (e Executor) Prefix() string {
	if e.SummaryPrefix == "" {
		return DefaultSummaryPrefix
	}
	return e.SummaryPrefix
}

// LoadEnvironment reads the opaque environment document. Missing files yield
// an empty mapping.
func LoadEnvironment(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}
	var out any
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse environment %s: %w", path, err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("environment %s must contain a mapping at the top level", path)
	}
	return m, nil
}
