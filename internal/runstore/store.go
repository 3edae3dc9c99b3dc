// File: internal/runstore/store.go
// Brief: Run artifact store (put/get keyed by run id and artifact name).

// Package runstore persists the artifacts of a single run. Pipeline stages
// only talk to the Store interface; FS is the filesystem implementation used
// by the CLI, where a run id is a directory path relative to the store root.
package runstore

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	ReportArtifact     = "relay.json"
	LoggerArtifact     = "logger.json"
	EvaluationArtifact = "evaluation.json"
	OutputsDir         = "outputs"
)

// OutputArtifact names the per-agent output artifact.
func OutputArtifact(agent string) string {
	return filepath.Join(OutputsDir, agent+".json")
}

// Store reads and writes run artifacts.
type Store interface {
	// Prepare makes the run and the given sub-areas exist.
	Prepare(runID string, areas ...string) error
	// Put writes v as the named artifact, replacing any previous version, and
	// returns its location.
	Put(runID, name string, v any) (string, error)
	// Get decodes the named artifact into v. A missing artifact yields a
	// *MissingArtifactError.
	Get(runID, name string, v any) error
	Exists(runID, name string) bool
	Location(runID, name string) string
}

// MissingArtifactError reports a required artifact that is not present.
type MissingArtifactError struct {
	RunID string
	Name  string
	Path  string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("artifact %s not found (%s)", e.Name, e.Path)
}

func (e *MissingArtifactError) Unwrap() error { return fs.ErrNotExist }

// FS stores artifacts as indented JSON files under Root. Absolute run ids are
// used as-is.
type FS struct {
	Root string
}

var _ Store = FS{}

// NewFS returns a filesystem store rooted at root.
func NewFS(root string) FS {
	return FS{Root: root}
}

// RunDir returns the directory backing runID.
func (s FS) RunDir(runID string) string {
	if filepath.IsAbs(runID) || strings.TrimSpace(s.Root) == "" {
		return filepath.Clean(runID)
	}
	return filepath.Join(s.Root, runID)
}

func (s FS) Location(runID, name string) string {
	return filepath.Join(s.RunDir(runID), name)
}

func (s FS) Prepare(runID string, areas ...string) error {
	dir := s.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create run dir %s", dir)
	}
	for _, area := range areas {
		if err := os.MkdirAll(filepath.Join(dir, area), 0o755); err != nil {
			return errors.Wrapf(err, "create %s in %s", area, dir)
		}
	}
	return nil
}

func (s FS) Put(runID, name string, v any) (string, error) {
	path := s.Location(runID, name)
	if err := writeJSONAtomic(path, v); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

func (s FS) Get(runID, name string, v any) error {
	path := s.Location(runID, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &MissingArtifactError{RunID: runID, Name: name, Path: path}
		}
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

func (s FS) Exists(runID, name string) bool {
	info, err := os.Stat(s.Location(runID, name))
	return err == nil && !info.IsDir()
}

// NewRunID returns a timestamp-prefixed run id, so lexicographic order
// matches creation order.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
