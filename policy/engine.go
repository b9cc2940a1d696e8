package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Verdict is the result of evaluating a resolution against operational
// policy. Flags are additive annotations; Escalate forces a handoff to a
// human regardless of what the resolution itself said.
type Verdict struct {
	Flags    []string
	Escalate bool
}

// Engine evaluates structured resolutions with OPA.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a policy engine from the given rego module source.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.verdict_policy.result"),
		rego.Module("verdict_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate runs the policy against a resolution.
// Input keys: issue_type, resolution_type, confidence_score, escalate,
// policy_flags, auto_resolve_floor.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (*Verdict, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	verdict := &Verdict{}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return verdict, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	if raw, ok := obj["flags"].([]interface{}); ok {
		for _, f := range raw {
			if s, ok := f.(string); ok {
				verdict.Flags = append(verdict.Flags, s)
			}
		}
	}
	if esc, ok := obj["escalate"].(bool); ok {
		verdict.Escalate = esc
	}
	return verdict, nil
}

// DefaultPolicy is the built-in verdict policy. Rules only add flags or
// force escalation; they never clear anything the investigation set.
const DefaultPolicy = `
package verdict_policy

mandatory_issue_types := {"UNAUTH_TRADE", "ACCOUNT_TAKEOVER", "FRAUD"}

mandatory_escalation {
	mandatory_issue_types[input.issue_type]
}

mandatory_escalation {
	some i
	flag := input.policy_flags[i]
	contains(flag, "FRAUD")
}

mandatory_escalation {
	some i
	flag := input.policy_flags[i]
	contains(flag, "UNAUTHORIZED")
}

low_confidence_auto_resolve {
	input.resolution_type == "AUTO_RESOLVED"
	input.confidence_score < input.auto_resolve_floor
}

flags[f] {
	mandatory_escalation
	f := "MANDATORY_ESCALATION"
}

flags[f] {
	low_confidence_auto_resolve
	f := "LOW_CONFIDENCE_AUTO_RESOLVE"
}

default escalate = false

escalate {
	mandatory_escalation
}

escalate {
	low_confidence_auto_resolve
}

result = {
	"flags": flags,
	"escalate": escalate,
}
`
