// Package runlog implements the logger stage: it turns a completed relay run
// into a redacted log record stored alongside the run's other artifacts.
package runlog

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/example/codex/internal/policy"
	"github.com/example/codex/internal/redact"
	"github.com/example/codex/internal/runstore"
)

// Record is the logger.json artifact.
type Record struct {
	Timestamp   string         `json:"timestamp"`
	RunDir      string         `json:"run_dir"`
	Persona     string         `json:"persona"`
	Role        string         `json:"role"`
	Pipeline    []string       `json:"pipeline"`
	Payload     any            `json:"payload"`
	Outputs     map[string]any `json:"outputs"`
	Environment *Environment   `json:"environment,omitempty"`
}

// relayReport is the subset of relay.json the logger consumes.
type relayReport struct {
	Persona  string         `json:"persona"`
	Role     string         `json:"role"`
	Pipeline []string       `json:"pipeline"`
	Payload  any            `json:"payload"`
	Outputs  map[string]any `json:"outputs"`
}

// Logger writes log records for completed runs.
type Logger struct {
	Store  runstore.Store
	Policy *policy.Policy
	// SourceDir is where the source revision is read from.
	SourceDir string
	Revision  RevisionFunc

	Logr logr.Logger
	Now  func() time.Time
}

// Confirmation is printed by the CLI after a successful log.
type Confirmation struct {
	Logged     bool   `json:"logged"`
	LoggerFile string `json:"logger_file"`
}

// Log writes logger.json for runDir and returns its location. The relay report
// must already exist; a missing report fails immediately with
// *runstore.MissingArtifactError. Re-running replaces the previous record.
func (l *Logger) Log(runDir string, recordEnvironment bool) (string, error) {
	var report relayReport
	if err := l.Store.Get(runDir, runstore.ReportArtifact, &report); err != nil {
		return "", err
	}

	payload := report.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	record := Record{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		RunDir:    l.runDirLocation(runDir),
		Persona:   report.Persona,
		Role:      report.Role,
		Pipeline:  report.Pipeline,
		Payload:   redact.Value(payload, l.Policy.RedactKeys()),
		Outputs:   report.Outputs,
	}
	if recordEnvironment {
		env := CollectEnvironment(l.SourceDir, l.Revision)
		if env.GitSHA == "" {
			l.Logr.V(1).Info("source revision unavailable; omitting git_sha", "dir", l.SourceDir)
		}
		record.Environment = &env
	}

	path, err := l.Store.Put(runDir, runstore.LoggerArtifact, record)
	if err != nil {
		return "", err
	}
	l.Logr.Info("run logged", "path", path, "environment", recordEnvironment)
	return path, nil
}

func (l *Logger) runDirLocation(runDir string) string {
	if fsStore, ok := l.Store.(runstore.FS); ok {
		return fsStore.RunDir(runDir)
	}
	return runDir
}

func (l *Logger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
