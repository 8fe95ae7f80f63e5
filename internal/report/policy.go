package report

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/lexnova/lexnova/internal/api"
)

// Decision is the certification gate's verdict.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review" // certify only after explicit confirmation
	DecisionBlock  Decision = "block"
)

// Gate evaluates a Rego policy over a report's fraud analysis.
type Gate struct {
	query rego.PreparedEvalQuery
}

// NewGate compiles policy. The policy must define
// data.lexnova.certification.decision.
func NewGate(ctx context.Context, policy string) (*Gate, error) {
	r := rego.New(
		rego.Query("data.lexnova.certification.decision"),
		rego.Module("certification.rego", policy),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare certification policy: %w", err)
	}
	return &Gate{query: query}, nil
}

// Evaluate returns the decision for report. A policy that yields nothing
// allows.
func (g *Gate) Evaluate(ctx context.Context, report api.SessionReport) (Decision, error) {
	results, err := g.query.Eval(ctx, rego.EvalInput(policyInput(report)))
	if err != nil {
		return "", fmt.Errorf("evaluate certification policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}

	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("certification policy returned %T, want string", results[0].Expressions[0].Value)
	}
	switch d := Decision(s); d {
	case DecisionAllow, DecisionReview, DecisionBlock:
		return d, nil
	}
	return "", fmt.Errorf("certification policy returned unknown decision %q", s)
}

func policyInput(report api.SessionReport) map[string]any {
	flagged := 0
	for _, e := range report.Transcript {
		if e.Flagged {
			flagged++
		}
	}
	return map[string]any{
		"riskScore":            report.FraudAnalysis.RiskScore,
		"voiceMatchConfidence": report.FraudAnalysis.VoiceMatchConfidence,
		"coercionDetected":     report.FraudAnalysis.CoercionDetected,
		"flaggedCount":         flagged,
	}
}

// DefaultPolicy blocks on detected coercion and asks for review on
// medium/high risk, weak voice matches, or flagged transcript lines.
const DefaultPolicy = `
package lexnova.certification

default decision = "allow"

decision = "block" {
	input.coercionDetected
}

decision = "review" {
	not input.coercionDetected
	input.riskScore >= 20
}

decision = "review" {
	not input.coercionDetected
	input.voiceMatchConfidence < 80
}

decision = "review" {
	not input.coercionDetected
	input.flaggedCount > 0
}
`
