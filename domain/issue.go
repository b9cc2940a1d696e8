package domain

import "time"

// Issue is a customer-reported issue. The engine reads it and writes back
// status transitions; everything else belongs to the ingestion side.
type Issue struct {
	IssueID    string      `json:"issue_id"`
	CustomerID string      `json:"customer_id"`
	RawMessage string      `json:"raw_message"`
	Channel    string      `json:"channel"`
	Urgency    string      `json:"urgency"`
	Status     IssueStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ToolCatalogEntry declares one tool the model may call: its name, input
// schema, cache class, and whether a failed execution is recoverable
// (fed back to the model as an error result) or aborts the run.
type ToolCatalogEntry struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description" yaml:"description"`
	Class       ToolClass              `json:"class" yaml:"class"`
	InputSchema map[string]interface{} `json:"input_schema" yaml:"input_schema"`
	Recoverable bool                   `json:"recoverable" yaml:"recoverable"`
}
