package digest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Index mirrors digest records into a sqlite table keyed by run directory.
// It never touches the run stores themselves.
type Index struct {
	db   *sql.DB
	path string
}

// IndexedRun is one row of the index.
type IndexedRun struct {
	RunDir             string
	Timestamp          string
	Persona            string
	Role               string
	Pipeline           []string
	EvaluationSchema   string
	EvaluationCriteria int
	LoggerPresent      bool
	IndexedAt          string
}

// OpenIndex opens (creating if needed) the index database at path.
func OpenIndex(ctx context.Context, path string) (*Index, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	ix := &Index{db: db, path: path}
	if err := ix.initSchema(ctx); err != nil {
		_ = ix.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) Path() string { return ix.path }

func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

func (ix *Index) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS codex_digest_runs (
  run_dir TEXT PRIMARY KEY,
  timestamp TEXT NOT NULL,
  persona TEXT NOT NULL,
  role TEXT NOT NULL,
  pipeline_json TEXT NOT NULL,
  outputs_json TEXT NOT NULL,
  evaluation_schema TEXT NOT NULL,
  evaluation_criteria INTEGER NOT NULL,
  logger_present INTEGER NOT NULL,
  indexed_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_codex_digest_runs_persona_role ON codex_digest_runs(persona, role);`,
	}
	for _, stmt := range stmts {
		if _, err := ix.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Upsert writes doc's records in one transaction, replacing rows for run
// directories already indexed.
func (ix *Index) Upsert(ctx context.Context, doc *Document) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range doc.Runs {
		pipelineJSON, err := json.Marshal(rec.Pipeline)
		if err != nil {
			return err
		}
		outputsJSON, err := json.Marshal(rec.Outputs)
		if err != nil {
			return err
		}
		logged := 0
		if rec.LoggerPresent {
			logged = 1
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO codex_digest_runs (
  run_dir, timestamp, persona, role, pipeline_json, outputs_json,
  evaluation_schema, evaluation_criteria, logger_present, indexed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_dir) DO UPDATE SET
  timestamp = excluded.timestamp,
  persona = excluded.persona,
  role = excluded.role,
  pipeline_json = excluded.pipeline_json,
  outputs_json = excluded.outputs_json,
  evaluation_schema = excluded.evaluation_schema,
  evaluation_criteria = excluded.evaluation_criteria,
  logger_present = excluded.logger_present,
  indexed_at = excluded.indexed_at
`, rec.RunDir, deref(rec.Timestamp), deref(rec.Persona), deref(rec.Role), string(pipelineJSON), string(outputsJSON),
			schemaString(rec.EvaluationSchema), rec.EvaluationCriteria, logged, doc.GeneratedAt)
		if err != nil {
			return fmt.Errorf("index %s: %w", rec.RunDir, err)
		}
	}
	return tx.Commit()
}

// Runs lists indexed runs, newest timestamp first.
func (ix *Index) Runs(ctx context.Context) ([]IndexedRun, error) {
	rows, err := ix.db.QueryContext(ctx, `
SELECT run_dir, timestamp, persona, role, pipeline_json, evaluation_schema,
       evaluation_criteria, logger_present, indexed_at
FROM codex_digest_runs
ORDER BY timestamp DESC, run_dir DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IndexedRun
	for rows.Next() {
		var (
			r            IndexedRun
			pipelineJSON string
			logged       int
		)
		if err := rows.Scan(&r.RunDir, &r.Timestamp, &r.Persona, &r.Role, &pipelineJSON,
			&r.EvaluationSchema, &r.EvaluationCriteria, &logged, &r.IndexedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(pipelineJSON), &r.Pipeline); err != nil {
			return nil, fmt.Errorf("decode pipeline for %s: %w", r.RunDir, err)
		}
		r.LoggerPresent = logged != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func schemaString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}
