package service

import (
	"encoding/json"
	"fmt"

	"github.com/casepilot/casepilot/domain"
	"github.com/casepilot/casepilot/llm"
)

const systemPrompt = `You are a financial issue investigation agent for a Canadian fintech.

Your job is to investigate customer-reported issues, account problems, transaction disputes,
tax questions, and compliance matters, by gathering evidence from multiple internal systems
and reaching a well-reasoned resolution.

## Your Role

You are NOT a customer-facing chatbot. You are an internal investigation engine.
Your output is a structured resolution that either:
  (a) resolves the issue automatically with full confidence, or
  (b) escalates to a human team with a complete evidence summary.

## Investigation Approach

1. Start with customer_lookup and account_lookup to understand who the customer is
   and what accounts they hold.
2. Gather specific evidence using transactions_search, account_login_history,
   account_communication_history, or transactions_metadata as appropriate.
3. Search policy_search to understand the rules that apply to this situation.
   Do NOT assume you know the rules. Always verify against policy.
4. Call cases_similar to check how comparable past cases were resolved.
5. Once you have sufficient evidence, call submit_resolution with your findings.

Be methodical. Follow the evidence. Do not skip steps.

## Hard Escalation Rules (Non-Negotiable)

These situations MUST be escalated (escalate=true) regardless of confidence:

| Situation                            | Reason                                      |
|--------------------------------------|---------------------------------------------|
| Suspected unauthorized access/trade  | Security team must investigate; no exceptions|
| Any tax advice or CRA filing guidance| Regulated advice which you cannot provide   |
| RRSP/TFSA over-contribution risk     | Requires NOA confirmation; tax implications |
| Insufficient data to resolve         | Do not guess on consequential matters        |
| Accounts with COMPLIANCE_BLOCK or LEGAL_HOLD | Do not discuss reason; escalate    |

## Policy Boundaries

- You may EXPLAIN what a policy says (e.g., DRIP tax treatment, wire timelines).
- You may NOT advise a customer on what to do about their taxes.
- You may NOT confirm RRSP/TFSA room without the customer's Notice of Assessment.
- You may NOT reverse, unfreeze, or take any direct action on an account.
  Your output is a recommendation. Humans execute.

## Confidence Calibration

- 0.90-1.00: Strong evidence, clear policy match, similar cases confirmed -> AUTO_RESOLVED
- 0.70-0.89: Good evidence, minor gaps -> AUTO_RESOLVED with caveats in next_steps
- 0.50-0.69: Incomplete data or ambiguity -> ESCALATED with evidence summary
- Below 0.50: Insufficient evidence -> ESCALATED immediately

## Output Format

When you have completed your investigation, call submit_resolution with:
- A concise root_cause (1-2 sentences)
- A clear resolution (what was found, what happens next)
- Concrete next_steps (numbered, actionable)
- An honest confidence_score
- escalate=true if ANY hard escalation rule applies
- All policy_flags triggered during your investigation

Do not fabricate evidence. Do not assume data you have not retrieved.
If a tool returns no results, state that explicitly in your reasoning.`

// terminalTool is the resolution tool definition. It is presented to the
// model alongside the catalog tools but is never dispatched; the client
// intercepts it at decode time.
func terminalTool() llm.Tool {
	params := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"issue_type": map[string]interface{}{
				"type": "string",
				"description": "Classified issue type: WIRE_DELAY, RRSP_OVER, UNAUTH_TRADE, " +
					"TAX_SLIP, ETRANSFER_FAIL, KYC_EXPIRED, ACCOUNT_FROZEN, or GENERAL.",
			},
			"root_cause": map[string]interface{}{
				"type":        "string",
				"description": "A concise explanation of the root cause of the issue.",
			},
			"resolution": map[string]interface{}{
				"type":        "string",
				"description": "What was determined and what happens next.",
			},
			"resolution_type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"AUTO_RESOLVED", "ESCALATED", "REFUNDED", "CORRECTED"},
				"description": "The resolution outcome category.",
			},
			"next_steps": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Ordered list of concrete next steps.",
			},
			"confidence_score": map[string]interface{}{
				"type":        "number",
				"description": "Confidence in this resolution, between 0.0 and 1.0.",
			},
			"escalate": map[string]interface{}{
				"type": "boolean",
				"description": "True if this issue requires human review. MUST be true for: " +
					"suspected fraud, tax advice, over-contributions, or insufficient data.",
			},
			"escalation_priority": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"},
				"description": "Priority of escalation. Required when escalate=true.",
			},
			"policy_flags": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Policy flag codes triggered during investigation.",
			},
		},
		"required": []string{
			"issue_type", "root_cause", "resolution", "resolution_type",
			"next_steps", "confidence_score", "escalate", "policy_flags",
		},
	}
	return llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name: llm.TerminalToolName,
			Description: "Submit the final investigation resolution. Call this ONLY when you have " +
				"completed your investigation and are ready to submit your findings. " +
				"This closes the investigation. Do not call any other tools after this.",
			Parameters: params,
		},
	}
}

// openingMessage frames the issue for the first turn.
func openingMessage(issue *domain.Issue) string {
	return fmt.Sprintf(
		"Please investigate the following customer issue:\n\n"+
			"Issue ID:    %s\n"+
			"Customer ID: %s\n"+
			"Channel:     %s\n"+
			"Urgency:     %s\n\n"+
			"Customer message:\n%q\n\n"+
			"Start by looking up the customer profile and their accounts, "+
			"then investigate the specific issue based on what you find.",
		issue.IssueID, issue.CustomerID, issue.Channel, issue.Urgency, issue.RawMessage,
	)
}

func paraphrasePrompt(message string, n int) string {
	return fmt.Sprintf(
		"Generate exactly %d paraphrases of this customer support message. "+
			"Rules:\n"+
			"- Keep ALL factual details identical: amounts, dates, account types, names, transaction IDs\n"+
			"- Vary only: wording, sentence structure, tone (formal/casual, brief/detailed, calm/frustrated)\n"+
			"- Each paraphrase must be a complete, natural-sounding message\n"+
			"- Return ONLY a valid JSON array of %d strings, no other text\n\n"+
			"Message:\n%s",
		n, n, message,
	)
}

const criticSystem = `You are a senior compliance reviewer auditing an AI agent's investigation verdict.

Review the structured output and assess:
1. Is resolution_type correct for the stated root_cause?
2. Does confidence_score seem appropriate (not too high/low)?
3. Is the escalation decision sound? (escalate=true is required for: suspected fraud,
   tax/regulatory advice, over-contributions, AML flags, insufficient data to decide)
4. Are policy_flags comprehensive given the described root_cause?

Respond with ONLY a valid JSON object, no markdown, no extra text:
{"agrees": true, "note": "One or two sentence explanation."}

Set agrees=false only for meaningful concerns (wrong resolution type, clearly wrong
escalation decision, dangerously overconfident score). Minor stylistic differences
are not a concern.`

func criticContext(issueID string, output *domain.StructuredOutput, reasoning string) string {
	verdict, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		verdict = []byte("{}")
	}
	if len(reasoning) > 600 {
		reasoning = reasoning[:600]
	}
	return fmt.Sprintf("Issue ID: %s\n\nAgent verdict:\n%s\n\nAgent reasoning (excerpt):\n%s",
		issueID, verdict, reasoning)
}
