// File: internal/digest/digest.go
// Brief: Cross-run digest aggregation over a run vault.

// Package digest summarizes many run stores into a single document. Scans are
// strictly read-only and tolerant: a run store with missing or corrupt
// artifacts still yields a record, with the affected fields defaulted.
package digest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/example/codex/internal/policy"
	"github.com/example/codex/internal/runstore"
)

// RunsDir is the vault subdirectory holding run stores.
const RunsDir = "runs"

// Record summarizes one run store.
type Record struct {
	RunDir             string         `json:"run_dir"`
	Timestamp          *string        `json:"timestamp"`
	Persona            *string        `json:"persona"`
	Role               *string        `json:"role"`
	Pipeline           []string       `json:"pipeline"`
	Outputs            map[string]any `json:"outputs"`
	EvaluationPresent  bool           `json:"evaluation_present"`
	EvaluationSchema   any            `json:"evaluation_schema"`
	EvaluationCriteria int            `json:"evaluation_criteria"`
	LoggerPresent      bool           `json:"logger_present"`
}

// History is echoed into the digest when digest.include_history is set.
type History struct {
	VaultPath string `json:"vault_path"`
	Limit     *int   `json:"limit"`
}

// Document is the digest artifact.
type Document struct {
	GeneratedAt string         `json:"generated_at"`
	Environment map[string]any `json:"environment"`
	RunCount    int            `json:"run_count"`
	Runs        []Record       `json:"runs"`
	History     *History       `json:"history,omitempty"`
}

// Collect scans <vaultRoot>/runs and returns one record per run store, most
// recent first. A directory holding relay.json is a run store; any other
// directory is a container whose child directories are run stores. A nil
// limit means unbounded.
func Collect(vaultRoot string, limit *int, log logr.Logger) ([]Record, error) {
	runsRoot := filepath.Join(vaultRoot, RunsDir)
	ids, err := candidates(runsRoot, log)
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return componentLess(ids[j], ids[i]) })
	if limit != nil && *limit >= 0 && len(ids) > *limit {
		ids = ids[:*limit]
	}

	store := runstore.NewFS(runsRoot)
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, collectOne(store, id, log))
	}
	return out, nil
}

func candidates(runsRoot string, log logr.Logger) ([]string, error) {
	entries, err := os.ReadDir(runsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", runsRoot, err)
	}
	var ids []string
	for _, e := range entries {
		path := filepath.Join(runsRoot, e.Name())
		if !isDir(path) {
			continue
		}
		if isFile(filepath.Join(path, runstore.ReportArtifact)) {
			ids = append(ids, e.Name())
			continue
		}
		nested, err := os.ReadDir(path)
		if err != nil {
			log.Info("skipping unreadable run container", "path", path, "error", err.Error())
			continue
		}
		for _, n := range nested {
			if isDir(filepath.Join(path, n.Name())) {
				ids = append(ids, filepath.Join(e.Name(), n.Name()))
			}
		}
	}
	return ids, nil
}

func collectOne(store runstore.FS, id string, log logr.Logger) Record {
	rec := Record{RunDir: store.RunDir(id), Outputs: map[string]any{}}

	// Fields are extracted one at a time: a field of the wrong type only
	// defaults itself.
	if report, ok := load(store, id, runstore.ReportArtifact, log); ok {
		rec.Timestamp = stringField(report, "timestamp")
		rec.Persona = stringField(report, "persona")
		rec.Role = stringField(report, "role")
		rec.Pipeline = stringsField(report, "pipeline")
		if outputs, ok := report["outputs"].(map[string]any); ok {
			rec.Outputs = outputs
		}
	}

	if eval, ok := load(store, id, runstore.EvaluationArtifact, log); ok {
		rec.EvaluationPresent = true
		rec.EvaluationSchema = eval["schema_version"]
		switch criteria := eval["criteria"].(type) {
		case []any:
			rec.EvaluationCriteria = len(criteria)
		case map[string]any:
			rec.EvaluationCriteria = len(criteria)
		}
	}

	if logged, ok := load(store, id, runstore.LoggerArtifact, log); ok {
		rec.LoggerPresent = len(logged) > 0
	}
	return rec
}

func stringField(m map[string]any, key string) *string {
	if s, ok := m[key].(string); ok {
		return &s
	}
	return nil
}

// stringsField returns m[key] when it is a sequence of strings.
func stringsField(m map[string]any, key string) []string {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

// load decodes the named artifact as a JSON object. Missing artifacts are
// expected; anything else is logged and treated as absent.
func load(store runstore.FS, id, name string, log logr.Logger) (map[string]any, bool) {
	var m map[string]any
	err := store.Get(id, name, &m)
	if err == nil {
		if m == nil {
			m = map[string]any{}
		}
		return m, true
	}
	var missing *runstore.MissingArtifactError
	if !errors.As(err, &missing) {
		log.Info("ignoring unreadable artifact", "run", store.RunDir(id), "artifact", name, "error", err.Error())
	}
	return nil, false
}

// Options configures Build.
type Options struct {
	// Limit overrides Policy.MaxRuns when set.
	Limit       *int
	Environment map[string]any
	Policy      policy.Digest
	Log         logr.Logger
	Now         func() time.Time
}

// EffectiveLimit returns the explicit limit, else the policy's max_runs.
func (o Options) EffectiveLimit() *int {
	if o.Limit != nil {
		return o.Limit
	}
	return o.Policy.MaxRuns
}

// Build collects the vault's runs and wraps them into a digest document.
func Build(vaultRoot string, opts Options) (*Document, error) {
	limit := opts.EffectiveLimit()
	runs, err := Collect(vaultRoot, limit, opts.Log)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	env := opts.Environment
	if env == nil {
		env = map[string]any{}
	}
	doc := &Document{
		GeneratedAt: now().UTC().Format(time.RFC3339Nano),
		Environment: env,
		RunCount:    len(runs),
		Runs:        runs,
	}
	if opts.Policy.IncludeHistory {
		doc.History = &History{VaultPath: vaultRoot, Limit: limit}
	}
	opts.Log.V(1).Info("digest built", "vault", vaultRoot, "runs", len(runs))
	return doc, nil
}

// componentLess orders paths by their components, so "a/b" sorts before "a-b".
func componentLess(a, b string) bool {
	ap := strings.Split(filepath.ToSlash(a), "/")
	bp := strings.Split(filepath.ToSlash(b), "/")
	for i := 0; i < len(ap) && i < len(bp); i++ {
		if ap[i] != bp[i] {
			return ap[i] < bp[i]
		}
	}
	return len(ap) < len(bp)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
