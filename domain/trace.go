package domain

import (
	"encoding/json"
	"time"
)

// ToolCallRecord is one dispatched (or cache-served) tool invocation.
// Records carry a digest of the arguments rather than the raw arguments,
// so traces stay comparable without leaking customer identifiers.
// Appended in call order; never mutated after append.
type ToolCallRecord struct {
	Tool          string  `json:"tool"`
	ArgsDigest    string  `json:"args_digest"`
	LatencyMS     float64 `json:"latency_ms"`
	CacheHit      bool    `json:"cache_hit"`
	ResultSummary string  `json:"result_summary"`
}

// StructuredOutput is the terminal verdict captured from the reserved
// submit_resolution tool. Raw preserves the full payload, including any
// scenario-specific fields beyond the fixed set below.
type StructuredOutput struct {
	IssueType          string             `json:"issue_type" validate:"required"`
	RootCause          string             `json:"root_cause" validate:"required"`
	Resolution         string             `json:"resolution" validate:"required"`
	ResolutionType     ResolutionType     `json:"resolution_type" validate:"required,oneof=AUTO_RESOLVED ESCALATED REFUNDED CORRECTED"`
	NextSteps          []string           `json:"next_steps"`
	ConfidenceScore    float64            `json:"confidence_score" validate:"gte=0,lte=1"`
	Escalate           *bool              `json:"escalate" validate:"required"`
	EscalationPriority EscalationPriority `json:"escalation_priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	PolicyFlags        []string           `json:"policy_flags"`

	Raw json.RawMessage `json:"-"`
}

// ShouldEscalate reads the escalate flag, treating a missing pointer as false.
func (o *StructuredOutput) ShouldEscalate() bool {
	return o != nil && o.Escalate != nil && *o.Escalate
}

// ForceEscalate sets escalate=true. It never clears an existing escalation.
func (o *StructuredOutput) ForceEscalate() {
	t := true
	o.Escalate = &t
}

// AddFlag appends a policy flag if not already present.
func (o *StructuredOutput) AddFlag(flag string) {
	for _, f := range o.PolicyFlags {
		if f == flag {
			return
		}
	}
	o.PolicyFlags = append(o.PolicyFlags, flag)
}

// SyncRaw folds mutated escalate and flag state back into the preserved
// raw payload, so extra fields survive alongside policy additions.
func (o *StructuredOutput) SyncRaw() {
	if len(o.Raw) == 0 {
		return
	}
	var m map[string]interface{}
	if err := json.Unmarshal(o.Raw, &m); err != nil {
		return
	}
	m["policy_flags"] = o.PolicyFlags
	m["escalate"] = o.ShouldEscalate()
	if b, err := json.Marshal(m); err == nil {
		o.Raw = b
	}
}

// HasFlag reports whether a policy flag is present.
func (o *StructuredOutput) HasFlag(flag string) bool {
	for _, f := range o.PolicyFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// RunTrace is the full audit record of one investigation. It is owned by a
// single investigation while Status is RUNNING and immutable afterwards.
type RunTrace struct {
	TraceID     string     `json:"trace_id"`
	IssueID     string     `json:"issue_id"`
	CustomerID  string     `json:"customer_id"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ToolCalls []ToolCallRecord  `json:"tool_calls"`
	Reasoning string            `json:"agent_reasoning"`
	Output    *StructuredOutput `json:"structured_output,omitempty"`

	ConfidenceScore    float64            `json:"confidence_score"`
	Escalate           bool               `json:"escalate"`
	EscalationPriority EscalationPriority `json:"escalation_priority,omitempty"`
	PolicyFlags        []string           `json:"policy_flags"`

	TokenCount int     `json:"token_count"`
	DurationMS float64 `json:"duration_ms"`
	Model      string  `json:"model,omitempty"`
	Error      string  `json:"error,omitempty"`

	// Critic review, best-effort and purely additive.
	CriticAgrees *bool  `json:"critic_agrees,omitempty"`
	CriticNote   string `json:"critic_note,omitempty"`
	CriticModel  string `json:"critic_model,omitempty"`
}
