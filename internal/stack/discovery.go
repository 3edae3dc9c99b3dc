// File: internal/stack/discovery.go
// Brief: Locate the stack document serving a persona/role pair.

package stack

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"
)

const stackFileExt = ".yaml"

// FindOptions selects a stack document.
type FindOptions struct {
	Persona string
	Role    string
	// SearchRoot is the directory scanned for *.yaml candidates.
	SearchRoot string
	// BaseRoot is tried first for a relative ExplicitPath.
	BaseRoot string
	// ExplicitPath skips the scan when set.
	ExplicitPath string

	Log logr.Logger
}

// Find returns the resolved document for opts and the absolute path it was
// loaded from. Without an explicit path, candidates are visited in
// lexicographic filename order and the first whose routing matches wins.
func Find(opts FindOptions) (Document, string, error) {
	if strings.TrimSpace(opts.ExplicitPath) != "" {
		target, err := explicitTarget(opts)
		if err != nil {
			return nil, "", err
		}
		doc, err := ResolveFile(target)
		if err != nil {
			return nil, "", err
		}
		opts.Log.V(1).Info("resolved explicit stack", "path", target)
		return doc, target, nil
	}

	candidates, err := listCandidates(opts.SearchRoot)
	if err != nil {
		return nil, "", err
	}
	for _, candidate := range candidates {
		doc, err := ResolveFile(candidate)
		if err != nil {
			return nil, "", err
		}
		if doc.Matches(opts.Persona, opts.Role) {
			abs, err := canonicalPath(candidate)
			if err != nil {
				return nil, "", err
			}
			opts.Log.V(1).Info("matched stack", "path", abs, "persona", opts.Persona, "role", opts.Role)
			return doc, abs, nil
		}
		opts.Log.V(1).Info("stack does not route persona/role", "path", candidate)
	}
	return nil, "", &LookupError{Persona: opts.Persona, Role: opts.Role}
}

func explicitTarget(opts FindOptions) (string, error) {
	explicit := opts.ExplicitPath
	if filepath.IsAbs(explicit) {
		if !exists(explicit) {
			return "", &LookupError{Persona: opts.Persona, Role: opts.Role, Path: explicit}
		}
		return canonicalPath(explicit)
	}
	var tried string
	for _, base := range []string{opts.BaseRoot, opts.SearchRoot} {
		if strings.TrimSpace(base) == "" {
			continue
		}
		candidate := filepath.Join(base, explicit)
		tried = candidate
		if exists(candidate) {
			return canonicalPath(candidate)
		}
	}
	if tried == "" {
		tried = explicit
	}
	return "", &LookupError{Persona: opts.Persona, Role: opts.Role, Path: tried}
}

func listCandidates(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LookupError{SearchRoot: root}
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != stackFileExt {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(root, name))
	}
	return out, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
