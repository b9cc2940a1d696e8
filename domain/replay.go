package domain

import "time"

// ReplaySession aggregates N replay runs against one source trace.
// StabilityScore is nil until every child run has a terminal verdict.
type ReplaySession struct {
	SessionID      string       `json:"session_id"`
	SourceTraceID  string       `json:"source_trace_id"`
	IssueID        string       `json:"issue_id"`
	NRuns          int          `json:"n_runs"`
	Matches        int          `json:"matches"`
	StabilityScore *float64     `json:"stability_score,omitempty"`
	Status         ReplayStatus `json:"status"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// ReplayRun pairs one paraphrased variant with its own full investigation
// trace and the verdict comparison against the original.
type ReplayRun struct {
	RunID           string         `json:"run_id"`
	SessionID       string         `json:"session_id"`
	Variant         int            `json:"variant"`
	Paraphrase      string         `json:"paraphrase"`
	TraceID         string         `json:"trace_id"`
	ResolutionType  ResolutionType `json:"resolution_type,omitempty"`
	Escalate        bool           `json:"escalate"`
	MatchesOriginal bool           `json:"matches_original"`
}
