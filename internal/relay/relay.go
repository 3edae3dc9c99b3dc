// File: internal/relay/relay.go
// Brief: Relay stage: stack lookup, payload gates, executor, run artifacts.

// Package relay implements the first pipeline stage. It resolves the stack
// for a persona/role, validates the payload, runs the executor bound to the
// stack's first agent, and records the per-agent output plus the run report
// in the run store. Later stages read those artifacts; they share no process
// state with this one.
package relay

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/example/codex/internal/advisory"
	"github.com/example/codex/internal/policy"
	"github.com/example/codex/internal/runstore"
	"github.com/example/codex/internal/stack"
)

// Pipeline lists the stages a run passes through, in order.
var Pipeline = []string{"relay", "executor", "logger", "evaluation", "digest"}

const defaultAgentName = "agent"

// Request is one relay invocation.
type Request struct {
	Persona string
	Role    string
	// Payload is the raw JSON text; it is size-checked before it is parsed.
	Payload string
	// RunDir identifies the run in the store. Relative ids resolve against Root.
	RunDir string
	// StackFile bypasses the persona/role scan when set.
	StackFile string
}

// Orchestrator carries everything a relay needs. Policy is read-only.
type Orchestrator struct {
	// Root is the process root: relative stack files, run dirs and output
	// references are interpreted against it.
	Root      string
	StacksDir string
	Policy    *policy.Policy
	Store     runstore.Store

	Log logr.Logger
	Now func() time.Time
}

// PoliciesApplied echoes the policy sections the relay consulted.
type PoliciesApplied struct {
	Relay    *policy.Relay    `json:"relay"`
	Executor *policy.Executor `json:"executor"`
}

// Report is the run report written to relay.json and printed by the CLI.
type Report struct {
	Timestamp       string            `json:"timestamp"`
	StackFile       string            `json:"stack_file"`
	Persona         string            `json:"persona"`
	Role            string            `json:"role"`
	Pipeline        []string          `json:"pipeline"`
	Invariants      map[string]any    `json:"cfms_invariants"`
	Meta            map[string]any    `json:"meta"`
	Payload         map[string]any    `json:"payload"`
	Outputs         map[string]string `json:"outputs"`
	PoliciesApplied PoliciesApplied   `json:"policies_applied"`
}

// Execute runs the relay stage. Every step is a hard gate: the first failure
// is returned and nothing written by earlier steps is rolled back.
func (o *Orchestrator) Execute(req Request) (*Report, error) {
	doc, stackPath, err := stack.Find(stack.FindOptions{
		Persona:      req.Persona,
		Role:         req.Role,
		SearchRoot:   o.StacksDir,
		BaseRoot:     o.Root,
		ExplicitPath: req.StackFile,
		Log:          o.Log,
	})
	if err != nil {
		return nil, err
	}

	payload, err := ParsePayload(req.Payload, o.Policy.MaxPayloadBytes())
	if err != nil {
		return nil, err
	}

	exec, err := advisory.NewExecutor(doc, o.Policy.ExecutorPolicy(), advisory.WithClock(o.now))
	if err != nil {
		return nil, err
	}
	result := exec.Run(advisory.NewPayload(payload))

	agentName := strings.TrimSpace(result.Meta.AgentName)
	if agentName == "" {
		agentName = defaultAgentName
	}
	if !validAgentName(agentName) {
		return nil, &stack.ShapeError{
			Path:   stackPath,
			Reason: fmt.Sprintf("agent name %q must be a plain file name", agentName),
		}
	}

	if err := o.Store.Prepare(req.RunDir, runstore.OutputsDir); err != nil {
		return nil, err
	}
	outputPath, err := o.Store.Put(req.RunDir, runstore.OutputArtifact(agentName), result)
	if err != nil {
		return nil, err
	}
	o.Log.V(1).Info("wrote agent output", "agent", agentName, "path", outputPath)

	var applied PoliciesApplied
	if o.Policy != nil {
		applied = PoliciesApplied{Relay: o.Policy.Relay, Executor: o.Policy.Executor}
	}
	report := &Report{
		Timestamp:       o.now().UTC().Format(time.RFC3339Nano),
		StackFile:       stackPath,
		Persona:         req.Persona,
		Role:            req.Role,
		Pipeline:        append([]string(nil), Pipeline...),
		Invariants:      doc.Invariants(),
		Meta:            doc.Meta(),
		Payload:         payload,
		Outputs:         map[string]string{"executor": o.reference(outputPath)},
		PoliciesApplied: applied,
	}
	reportPath, err := o.Store.Put(req.RunDir, runstore.ReportArtifact, report)
	if err != nil {
		return nil, err
	}
	o.Log.Info("relay complete", "persona", req.Persona, "role", req.Role, "report", reportPath)
	return report, nil
}

// validAgentName reports whether name can be used as an artifact file name
// inside the run's outputs directory.
func validAgentName(name string) bool {
	if name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// reference renders path relative to Root when it lies beneath it.
func (o *Orchestrator) reference(path string) string {
	if strings.TrimSpace(o.Root) == "" {
		return path
	}
	root, err := filepath.Abs(o.Root)
	if err != nil {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return rel
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
