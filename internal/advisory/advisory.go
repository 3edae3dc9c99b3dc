// Package advisory turns a normalized request payload into a structured
// advisory. Generation is deterministic: the same payload and policy always
// produce the same advisory.
package advisory

import (
	"strings"

	"github.com/example/codex/internal/policy"
)

const (
	ConfidenceHigh     = "high"
	ConfidenceBalanced = "balanced"

	RiskLow    = "low"
	RiskMedium = "medium"

	summarySeparator = " — "
	defaultContext   = "No additional context supplied."
	fallbackAction   = "Document a concrete next step."
)

// Advisory is the structured recommendation stored under "advice".
type Advisory struct {
	Summary            string   `json:"summary"`
	RecommendedActions []string `json:"recommended_actions"`
	Confidence         string   `json:"confidence"`
	RiskLevel          string   `json:"risk_level"`
}

// Generate builds the advisory for p under the executor policy.
func Generate(p Payload, pol policy.Executor) Advisory {
	objective, hasObjective := p.Objectives.First()
	blocker, hasBlocker := p.Blockers.First()

	background := p.Context
	if background == "" {
		background = defaultContext
	}
	parts := []string{pol.Prefix(), background}
	if hasObjective {
		parts = append(parts, "Core objective: "+objective)
	}

	actions := append([]string{}, pol.DefaultActions...)
	if hasBlocker {
		actions = append(actions, "Resolve blocker: "+blocker)
	}
	if hasObjective {
		actions = append(actions, "Advance objective: "+objective)
	}
	if len(actions) == 0 {
		actions = append(actions, fallbackAction)
	}

	risk := p.RiskLevel
	if risk == "" {
		risk = RiskLow
		if hasBlocker {
			risk = RiskMedium
		}
	}
	confidence := ConfidenceHigh
	if hasBlocker {
		confidence = ConfidenceBalanced
	}

	return Advisory{
		Summary:            strings.Join(parts, summarySeparator),
		RecommendedActions: actions,
		Confidence:         confidence,
		RiskLevel:          risk,
	}
}
