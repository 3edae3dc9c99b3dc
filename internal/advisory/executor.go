package advisory

import (
	"errors"
	"time"

	"github.com/example/codex/internal/policy"
	"github.com/example/codex/internal/stack"
)

var (
	// ErrEmptyStack is returned when the bound stack document has no content.
	ErrEmptyStack = errors.New("stack configuration cannot be empty")
	// ErrNoAgents is returned when the bound stack declares no agents.
	ErrNoAgents = errors.New("stack must declare at least one agent")
)

// Executor binds the advisory generator to a stack's first agent.
type Executor struct {
	stack  stack.Document
	policy policy.Executor
	agent  stack.Agent
	now    func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

// WithClock overrides the clock used for generated_at.
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) {
		e.now = clock
	}
}

// NewExecutor validates doc and binds its first declared agent.
func NewExecutor(doc stack.Document, pol policy.Executor, opts ...Option) (*Executor, error) {
	if len(doc) == 0 {
		return nil, ErrEmptyStack
	}
	agents := doc.Agents()
	if len(agents) == 0 {
		return nil, ErrNoAgents
	}
	e := &Executor{
		stack:  doc,
		policy: pol,
		agent:  agents[0],
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Agent returns the bound agent.
func (e *Executor) Agent() stack.Agent {
	return e.agent
}

// ResultMeta identifies the agent that produced a Result.
type ResultMeta struct {
	AgentName   string `json:"agent_name"`
	Model       string `json:"model"`
	GeneratedAt string `json:"generated_at"`
}

// Result is the per-agent output artifact.
type Result struct {
	Meta       ResultMeta     `json:"meta"`
	Routing    map[string]any `json:"routing"`
	Invariants map[string]any `json:"cfms_invariants"`
	Payload    map[string]any `json:"payload"`
	Advice     Advisory       `json:"advice"`
}

// Run generates the advisory for payload and wraps it with agent metadata.
func (e *Executor) Run(payload Payload) Result {
	return Result{
		Meta: ResultMeta{
			AgentName:   e.agent.Name,
			Model:       e.agent.Model,
			GeneratedAt: e.now().UTC().Format(time.RFC3339Nano),
		},
		Routing:    e.stack.RoutingSection(),
		Invariants: e.stack.Invariants(),
		Payload:    payload.Raw,
		Advice:     Generate(payload, e.policy),
	}
}
