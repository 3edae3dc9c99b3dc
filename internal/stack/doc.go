// File: internal/stack/doc.go
// Brief: Persona stack documents: include resolution, merge, and lookup.

// Package stack implements codex stack documents: loading a YAML document,
// resolving its ordered includes with cycle detection, deep-merging the
// result, and locating the document that serves a persona/role pair.
package stack
