// File: internal/stack/errors.go
// Brief: Typed errors for stack resolution and lookup.

package stack

import (
	"fmt"
	"strings"
)

// CycleError reports an include graph cycle. Path holds the active ancestry
// followed by the repeated document.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "circular include detected: " + strings.Join(e.Path, " -> ")
}

// NotFoundError reports a document (or include target) that does not exist.
type NotFoundError struct {
	Path string
	// IncludedFrom is empty for the root document.
	IncludedFrom string
}

func (e *NotFoundError) Error() string {
	if e.IncludedFrom != "" {
		return fmt.Sprintf("stack include %s (from %s) does not exist", e.Path, e.IncludedFrom)
	}
	return fmt.Sprintf("stack file %s does not exist", e.Path)
}

// ShapeError reports a document whose decoded content has the wrong shape.
type ShapeError struct {
	Path   string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// LookupError reports that no stack document serves the requested persona/role,
// or that an explicit stack file could not be located.
type LookupError struct {
	Persona string
	Role    string
	Path    string
	// SearchRoot is set when the directory to scan does not exist.
	SearchRoot string
}

func (e *LookupError) Error() string {
	if e.SearchRoot != "" {
		return fmt.Sprintf("stacks directory %s does not exist", e.SearchRoot)
	}
	if e.Path != "" {
		return fmt.Sprintf("stack file %s does not exist", e.Path)
	}
	return fmt.Sprintf("no stack found for persona=%s role=%s", e.Persona, e.Role)
}
