package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/casepilot/casepilot/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one so
	// every caller sees the same schema.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS issues (
			issue_id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			raw_message TEXT NOT NULL,
			channel TEXT NOT NULL,
			urgency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS run_traces (
			trace_id TEXT PRIMARY KEY,
			issue_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			tool_calls TEXT,
			agent_reasoning TEXT,
			structured_output TEXT,
			confidence_score REAL NOT NULL DEFAULT 0,
			escalate INTEGER NOT NULL DEFAULT 0,
			escalation_priority TEXT,
			policy_flags TEXT,
			token_count INTEGER NOT NULL DEFAULT 0,
			duration_ms REAL NOT NULL DEFAULT 0,
			model TEXT,
			error TEXT,
			critic_agrees INTEGER,
			critic_note TEXT,
			critic_model TEXT,
			FOREIGN KEY (issue_id) REFERENCES issues(issue_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_issue ON run_traces(issue_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS replay_sessions (
			session_id TEXT PRIMARY KEY,
			source_trace_id TEXT NOT NULL,
			issue_id TEXT NOT NULL,
			n_runs INTEGER NOT NULL,
			matches INTEGER NOT NULL DEFAULT 0,
			stability_score REAL,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			FOREIGN KEY (source_trace_id) REFERENCES run_traces(trace_id)
		)`,
		`CREATE TABLE IF NOT EXISTS replay_runs (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			variant INTEGER NOT NULL,
			paraphrase TEXT NOT NULL,
			trace_id TEXT NOT NULL,
			resolution_type TEXT,
			escalate INTEGER NOT NULL DEFAULT 0,
			matches_original INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (session_id) REFERENCES replay_sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_replay_runs_session ON replay_runs(session_id, variant)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateIssue inserts a new issue.
func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *domain.Issue) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (issue_id, customer_id, raw_message, channel, urgency, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		issue.IssueID, issue.CustomerID, issue.RawMessage, issue.Channel, issue.Urgency, issue.Status, issue.CreatedAt)
	return err
}

// GetIssue retrieves an issue by ID.
func (s *SQLiteStore) GetIssue(ctx context.Context, issueID string) (*domain.Issue, error) {
	var issue domain.Issue
	err := s.db.QueryRowContext(ctx,
		`SELECT issue_id, customer_id, raw_message, channel, urgency, status, created_at FROM issues WHERE issue_id = ?`,
		issueID).Scan(&issue.IssueID, &issue.CustomerID, &issue.RawMessage, &issue.Channel, &issue.Urgency, &issue.Status, &issue.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// ListIssues retrieves all issues, most urgent first.
func (s *SQLiteStore) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_id, customer_id, raw_message, channel, urgency, status, created_at FROM issues
		 ORDER BY CASE urgency WHEN 'critical' THEN 1 WHEN 'high' THEN 2 WHEN 'medium' THEN 3 ELSE 4 END, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []domain.Issue
	for rows.Next() {
		var issue domain.Issue
		if err := rows.Scan(&issue.IssueID, &issue.CustomerID, &issue.RawMessage, &issue.Channel, &issue.Urgency, &issue.Status, &issue.CreatedAt); err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// UpdateIssueStatus transitions an issue's lifecycle status.
func (s *SQLiteStore) UpdateIssueStatus(ctx context.Context, issueID string, status domain.IssueStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE issues SET status = ? WHERE issue_id = ?`, status, issueID)
	return err
}

// CreateRunTrace inserts a trace at loop start, in RUNNING state.
func (s *SQLiteStore) CreateRunTrace(ctx context.Context, trace *domain.RunTrace) error {
	toolCalls, flags, output, err := marshalTraceColumns(trace)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_traces (trace_id, issue_id, customer_id, status, started_at,
			tool_calls, agent_reasoning, structured_output, confidence_score, escalate,
			escalation_priority, policy_flags, token_count, duration_ms, model, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.TraceID, trace.IssueID, trace.CustomerID, trace.Status, trace.StartedAt,
		toolCalls, trace.Reasoning, output, trace.ConfidenceScore, trace.Escalate,
		string(trace.EscalationPriority), flags, trace.TokenCount, trace.DurationMS, trace.Model, trace.Error)
	return err
}

// UpdateRunTrace writes the terminal snapshot of a trace. Terminal traces
// are never updated again.
func (s *SQLiteStore) UpdateRunTrace(ctx context.Context, trace *domain.RunTrace) error {
	toolCalls, flags, output, err := marshalTraceColumns(trace)
	if err != nil {
		return err
	}
	var criticAgrees interface{}
	if trace.CriticAgrees != nil {
		criticAgrees = *trace.CriticAgrees
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_traces SET status = ?, completed_at = ?, tool_calls = ?, agent_reasoning = ?,
			structured_output = ?, confidence_score = ?, escalate = ?, escalation_priority = ?,
			policy_flags = ?, token_count = ?, duration_ms = ?, model = ?, error = ?,
			critic_agrees = ?, critic_note = ?, critic_model = ?
		 WHERE trace_id = ? AND status = 'running'`,
		trace.Status, trace.CompletedAt, toolCalls, trace.Reasoning,
		output, trace.ConfidenceScore, trace.Escalate, string(trace.EscalationPriority),
		flags, trace.TokenCount, trace.DurationMS, trace.Model, trace.Error,
		criticAgrees, trace.CriticNote, trace.CriticModel,
		trace.TraceID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("trace %s is not in running state", trace.TraceID)
	}
	return nil
}

// GetRunTrace retrieves a trace by ID.
func (s *SQLiteStore) GetRunTrace(ctx context.Context, traceID string) (*domain.RunTrace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT trace_id, issue_id, customer_id, status, started_at, completed_at,
			tool_calls, agent_reasoning, structured_output, confidence_score, escalate,
			escalation_priority, policy_flags, token_count, duration_ms, model, error,
			critic_agrees, critic_note, critic_model
		 FROM run_traces WHERE trace_id = ?`, traceID)
	trace, err := scanTrace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return trace, err
}

// ListRunTraces retrieves all traces for an issue, newest first.
func (s *SQLiteStore) ListRunTraces(ctx context.Context, issueID string) ([]domain.RunTrace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trace_id, issue_id, customer_id, status, started_at, completed_at,
			tool_calls, agent_reasoning, structured_output, confidence_score, escalate,
			escalation_priority, policy_flags, token_count, duration_ms, model, error,
			critic_agrees, critic_note, critic_model
		 FROM run_traces WHERE issue_id = ? ORDER BY started_at DESC`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var traces []domain.RunTrace
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, *trace)
	}
	return traces, rows.Err()
}

// CreateReplaySession inserts a session in RUNNING state.
func (s *SQLiteStore) CreateReplaySession(ctx context.Context, session *domain.ReplaySession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO replay_sessions (session_id, source_trace_id, issue_id, n_runs, matches, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.SourceTraceID, session.IssueID, session.NRuns, session.Matches, session.Status, session.StartedAt)
	return err
}

// AppendReplayRun inserts a completed child run and bumps the session's
// running match aggregate.
func (s *SQLiteStore) AppendReplayRun(ctx context.Context, run *domain.ReplayRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO replay_runs (run_id, session_id, variant, paraphrase, trace_id, resolution_type, escalate, matches_original)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.SessionID, run.Variant, run.Paraphrase, run.TraceID,
		string(run.ResolutionType), run.Escalate, run.MatchesOriginal); err != nil {
		return err
	}
	if run.MatchesOriginal {
		if _, err := tx.ExecContext(ctx,
			`UPDATE replay_sessions SET matches = matches + 1 WHERE session_id = ?`, run.SessionID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CompleteReplaySession writes the terminal session snapshot.
func (s *SQLiteStore) CompleteReplaySession(ctx context.Context, session *domain.ReplaySession) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE replay_sessions SET matches = ?, stability_score = ?, status = ?, completed_at = ? WHERE session_id = ?`,
		session.Matches, session.StabilityScore, session.Status, session.CompletedAt, session.SessionID)
	return err
}

// GetReplaySession retrieves a session by ID.
func (s *SQLiteStore) GetReplaySession(ctx context.Context, sessionID string) (*domain.ReplaySession, error) {
	var session domain.ReplaySession
	var stability sql.NullFloat64
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, source_trace_id, issue_id, n_runs, matches, stability_score, status, started_at, completed_at
		 FROM replay_sessions WHERE session_id = ?`, sessionID).
		Scan(&session.SessionID, &session.SourceTraceID, &session.IssueID, &session.NRuns,
			&session.Matches, &stability, &session.Status, &session.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stability.Valid {
		session.StabilityScore = &stability.Float64
	}
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}
	return &session, nil
}

// ListReplayRuns retrieves the child runs of a session in variant order.
func (s *SQLiteStore) ListReplayRuns(ctx context.Context, sessionID string) ([]domain.ReplayRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, session_id, variant, paraphrase, trace_id, resolution_type, escalate, matches_original
		 FROM replay_runs WHERE session_id = ? ORDER BY variant ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.ReplayRun
	for rows.Next() {
		var run domain.ReplayRun
		var resolutionType sql.NullString
		if err := rows.Scan(&run.RunID, &run.SessionID, &run.Variant, &run.Paraphrase,
			&run.TraceID, &resolutionType, &run.Escalate, &run.MatchesOriginal); err != nil {
			return nil, err
		}
		if resolutionType.Valid {
			run.ResolutionType = domain.ResolutionType(resolutionType.String)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func marshalTraceColumns(trace *domain.RunTrace) (toolCalls, flags, output string, err error) {
	tc, err := json.Marshal(trace.ToolCalls)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal tool calls: %w", err)
	}
	pf, err := json.Marshal(trace.PolicyFlags)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal policy flags: %w", err)
	}
	out := ""
	if trace.Output != nil {
		// The raw terminal payload is the stored form, so scenario-specific
		// extra fields survive the round trip.
		if len(trace.Output.Raw) > 0 {
			out = string(trace.Output.Raw)
		} else {
			b, err := json.Marshal(trace.Output)
			if err != nil {
				return "", "", "", fmt.Errorf("failed to marshal structured output: %w", err)
			}
			out = string(b)
		}
	}
	return string(tc), string(pf), out, nil
}

func scanTrace(row rowScanner) (*domain.RunTrace, error) {
	var trace domain.RunTrace
	var completedAt sql.NullTime
	var toolCalls, reasoning, output, priority, flags, model, errText sql.NullString
	var criticAgrees sql.NullBool
	var criticNote, criticModel sql.NullString

	err := row.Scan(&trace.TraceID, &trace.IssueID, &trace.CustomerID, &trace.Status,
		&trace.StartedAt, &completedAt, &toolCalls, &reasoning, &output,
		&trace.ConfidenceScore, &trace.Escalate, &priority, &flags,
		&trace.TokenCount, &trace.DurationMS, &model, &errText,
		&criticAgrees, &criticNote, &criticModel)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		trace.CompletedAt = &completedAt.Time
	}
	if toolCalls.Valid && toolCalls.String != "" {
		if err := json.Unmarshal([]byte(toolCalls.String), &trace.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
		}
	}
	trace.Reasoning = reasoning.String
	if output.Valid && output.String != "" {
		var out domain.StructuredOutput
		if err := json.Unmarshal([]byte(output.String), &out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal structured output: %w", err)
		}
		out.Raw = json.RawMessage(output.String)
		trace.Output = &out
	}
	trace.EscalationPriority = domain.EscalationPriority(priority.String)
	if flags.Valid && flags.String != "" {
		if err := json.Unmarshal([]byte(flags.String), &trace.PolicyFlags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal policy flags: %w", err)
		}
	}
	trace.Model = model.String
	trace.Error = errText.String
	if criticAgrees.Valid {
		trace.CriticAgrees = &criticAgrees.Bool
	}
	trace.CriticNote = criticNote.String
	trace.CriticModel = criticModel.String
	return &trace, nil
}
