// File: internal/stack/include.go
// Brief: Recursive include resolution with cycle detection.

package stack

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Ancestry is the chain of documents on the active include path. It is a
// value type: With returns a new chain and never touches the receiver, so
// sibling resolutions cannot observe each other.
type Ancestry struct {
	paths []string
}

// With returns a new chain extended by path.
func (a Ancestry) With(path string) Ancestry {
	next := make([]string, len(a.paths), len(a.paths)+1)
	copy(next, a.paths)
	return Ancestry{paths: append(next, path)}
}

// Contains reports whether path is already on the chain.
func (a Ancestry) Contains(path string) bool {
	for _, p := range a.paths {
		if p == path {
			return true
		}
	}
	return false
}

// Paths returns a copy of the chain, outermost first.
func (a Ancestry) Paths() []string {
	return append([]string(nil), a.paths...)
}

func (a Ancestry) last() string {
	if len(a.paths) == 0 {
		return ""
	}
	return a.paths[len(a.paths)-1]
}

// ResolveFile resolves path as a root document.
func ResolveFile(path string) (Document, error) {
	return Resolve(path, Ancestry{})
}

// Resolve loads the document at path and merges its includes, in declared
// order, underneath its own body. Each include is resolved relative to the
// directory of the document that names it.
func Resolve(path string, ancestry Ancestry) (Document, error) {
	id, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	if ancestry.Contains(id) {
		return nil, &CycleError{Path: append(ancestry.Paths(), id)}
	}
	data, err := loadDocument(id, ancestry.last())
	if err != nil {
		return nil, err
	}
	includes, err := includeList(id, data[includeKey])
	if err != nil {
		return nil, err
	}

	child := ancestry.With(id)
	merged := map[string]any{}
	for _, name := range includes {
		target := name
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(id), target)
		}
		inc, err := Resolve(target, child)
		if err != nil {
			return nil, err
		}
		merged = Merge(merged, inc)
	}

	body := make(map[string]any, len(data))
	for k, v := range data {
		if k == includeKey {
			continue
		}
		body[k] = v
	}
	return Document(Merge(merged, body)), nil
}

func loadDocument(path, includedFrom string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path, IncludedFrom: includedFrom}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var decoded any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if decoded == nil {
		return map[string]any{}, nil
	}
	m, ok := normalize(decoded).(map[string]any)
	if !ok {
		return nil, &ShapeError{Path: path, Reason: "document must contain a mapping at the top level"}
	}
	return m, nil
}

func includeList(path string, v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &ShapeError{Path: path, Reason: "include must be a sequence of paths"}
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, &ShapeError{Path: path, Reason: fmt.Sprintf("include[%d] must be a non-empty path", i)}
		}
		out = append(out, s)
	}
	return out, nil
}

// canonicalPath returns the identity used for cycle detection: absolute,
// cleaned, and with symlinks evaluated when the target exists.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return filepath.Clean(abs), nil
}
