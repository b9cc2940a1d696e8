// Package domain defines the core domain models for the investigation engine.
package domain

// IssueStatus represents the lifecycle status of a customer issue.
type IssueStatus string

const (
	IssueStatusOpen          IssueStatus = "open"
	IssueStatusInvestigating IssueStatus = "investigating"
	IssueStatusResolved      IssueStatus = "resolved"
	IssueStatusEscalated     IssueStatus = "escalated"
)

// RunStatus represents the status of an investigation run.
// A trace is created in RUNNING state and transitions exactly once to a
// terminal state; it is never mutated afterwards.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusEscalated RunStatus = "escalated"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminalRunStatus reports whether a run status allows no further transitions.
func IsTerminalRunStatus(status RunStatus) bool {
	switch status {
	case RunStatusCompleted, RunStatusEscalated, RunStatusFailed:
		return true
	}
	return false
}

// ResolutionType is the outcome category of a verdict.
type ResolutionType string

const (
	ResolutionAutoResolved ResolutionType = "AUTO_RESOLVED"
	ResolutionEscalated    ResolutionType = "ESCALATED"
	ResolutionRefunded     ResolutionType = "REFUNDED"
	ResolutionCorrected    ResolutionType = "CORRECTED"
)

// EscalationPriority orders escalated verdicts for human review.
type EscalationPriority string

const (
	PriorityLow      EscalationPriority = "LOW"
	PriorityMedium   EscalationPriority = "MEDIUM"
	PriorityHigh     EscalationPriority = "HIGH"
	PriorityCritical EscalationPriority = "CRITICAL"
)

// ToolClass selects the cache TTL tier for a tool's results.
type ToolClass string

const (
	// ToolClassLookup covers point lookups and parameterized queries.
	ToolClassLookup ToolClass = "lookup"
	// ToolClassSearch covers similarity search over embeddings.
	ToolClassSearch ToolClass = "search"
	// ToolClassReference covers relatively static reference material such
	// as policy documents.
	ToolClassReference ToolClass = "reference"
)

// ReplayStatus represents the status of a replay session.
type ReplayStatus string

const (
	ReplayStatusRunning   ReplayStatus = "running"
	ReplayStatusCompleted ReplayStatus = "completed"
	ReplayStatusFailed    ReplayStatus = "failed"
)

// Reserved policy flags stamped by the engine itself, outside the
// model-declared vocabulary.
const (
	FlagMaxTurnsExceeded       = "MAX_TURNS_EXCEEDED"
	FlagMandatoryEscalation    = "MANDATORY_ESCALATION"
	FlagLowConfidenceAutoClose = "LOW_CONFIDENCE_AUTO_RESOLVE"
)
