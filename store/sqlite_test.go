package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casepilot/casepilot/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestIssue(t *testing.T, s *SQLiteStore) *domain.Issue {
	t.Helper()
	issue := &domain.Issue{
		IssueID:    "issue-test-0001",
		CustomerID: "cust-test-0001",
		RawMessage: "My wire transfer has not arrived.",
		Channel:    "chat",
		Urgency:    "high",
		Status:     domain.IssueStatusOpen,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.CreateIssue(context.Background(), issue))
	return issue
}

func createRunningTrace(t *testing.T, s *SQLiteStore, issue *domain.Issue) *domain.RunTrace {
	t.Helper()
	trace := &domain.RunTrace{
		TraceID:    "trace_test01",
		IssueID:    issue.IssueID,
		CustomerID: issue.CustomerID,
		Status:     domain.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
		Model:      "claude-sonnet-4-5",
	}
	require.NoError(t, s.CreateRunTrace(context.Background(), trace))
	return trace
}

func TestIssueLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	issue := createTestIssue(t, s)

	got, err := s.GetIssue(ctx, issue.IssueID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, issue.RawMessage, got.RawMessage)
	assert.Equal(t, domain.IssueStatusOpen, got.Status)

	require.NoError(t, s.UpdateIssueStatus(ctx, issue.IssueID, domain.IssueStatusInvestigating))
	got, err = s.GetIssue(ctx, issue.IssueID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusInvestigating, got.Status)

	missing, err := s.GetIssue(ctx, "issue-nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListIssuesOrdersByUrgency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, spec := range []struct{ id, urgency string }{
		{"issue-low", "low"},
		{"issue-critical", "critical"},
		{"issue-medium", "medium"},
	} {
		require.NoError(t, s.CreateIssue(ctx, &domain.Issue{
			IssueID: spec.id, CustomerID: "cust-x", RawMessage: "m",
			Channel: "email", Urgency: spec.urgency,
			Status: domain.IssueStatusOpen, CreatedAt: now,
		}))
	}

	issues, err := s.ListIssues(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, "issue-critical", issues[0].IssueID)
	assert.Equal(t, "issue-low", issues[2].IssueID)
}

func TestRunTraceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	issue := createTestIssue(t, s)
	trace := createRunningTrace(t, s, issue)

	// Terminal snapshot with an extra field beyond the fixed schema.
	rawOutput := json.RawMessage(`{
		"issue_type": "WIRE_DELAY",
		"root_cause": "AML hold on a wire over the FINTRAC threshold.",
		"resolution": "Funds release automatically once review clears.",
		"resolution_type": "AUTO_RESOLVED",
		"next_steps": ["Wait for review to complete."],
		"confidence_score": 0.9,
		"escalate": false,
		"policy_flags": ["AML_REVIEW_TRIGGERED"],
		"aml_reference": "WIRE-77-5521"
	}`)
	var output domain.StructuredOutput
	require.NoError(t, json.Unmarshal(rawOutput, &output))
	output.Raw = rawOutput

	now := time.Now().UTC()
	agrees := true
	trace.Status = domain.RunStatusCompleted
	trace.CompletedAt = &now
	trace.ToolCalls = []domain.ToolCallRecord{
		{Tool: "customer_lookup", ArgsDigest: "abc123def456", LatencyMS: 12.5, ResultSummary: "Customer: Alex Chen | KYC: verified"},
		{Tool: "customer_lookup", ArgsDigest: "abc123def456", LatencyMS: 0.1, CacheHit: true, ResultSummary: "Customer: Alex Chen | KYC: verified"},
	}
	trace.Reasoning = "Wire is held for AML review."
	trace.Output = &output
	trace.ConfidenceScore = 0.9
	trace.PolicyFlags = []string{"AML_REVIEW_TRIGGERED"}
	trace.TokenCount = 1840
	trace.DurationMS = 5210.77
	trace.CriticAgrees = &agrees
	trace.CriticNote = "Sound reasoning."
	trace.CriticModel = "claude-haiku-4-5"

	require.NoError(t, s.UpdateRunTrace(ctx, trace))

	got, err := s.GetRunTrace(ctx, trace.TraceID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	require.Len(t, got.ToolCalls, 2)
	assert.True(t, got.ToolCalls[1].CacheHit)
	require.NotNil(t, got.Output)
	assert.Equal(t, domain.ResolutionAutoResolved, got.Output.ResolutionType)
	assert.False(t, got.Output.ShouldEscalate())
	require.NotNil(t, got.CriticAgrees)
	assert.True(t, *got.CriticAgrees)

	// The extra field survives through the raw payload.
	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Output.Raw, &stored))
	assert.Equal(t, "WIRE-77-5521", stored["aml_reference"])
}

func TestUpdateRunTraceRejectsTerminalTraces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	issue := createTestIssue(t, s)
	trace := createRunningTrace(t, s, issue)

	now := time.Now().UTC()
	trace.Status = domain.RunStatusFailed
	trace.CompletedAt = &now
	trace.Error = "completion failed"
	require.NoError(t, s.UpdateRunTrace(ctx, trace))

	// A second terminal write must be refused.
	trace.Status = domain.RunStatusCompleted
	err := s.UpdateRunTrace(ctx, trace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in running state")
}

func TestGetRunTraceMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetRunTrace(context.Background(), "trace_nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReplaySessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	issue := createTestIssue(t, s)
	trace := createRunningTrace(t, s, issue)

	session := &domain.ReplaySession{
		SessionID:     "replay_test01",
		SourceTraceID: trace.TraceID,
		IssueID:       issue.IssueID,
		NRuns:         3,
		Status:        domain.ReplayStatusRunning,
		StartedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.CreateReplaySession(ctx, session))

	for i := 0; i < 3; i++ {
		run := &domain.ReplayRun{
			RunID:           "rrun_" + string(rune('a'+i)),
			SessionID:       session.SessionID,
			Variant:         i,
			Paraphrase:      "variant message",
			TraceID:         trace.TraceID,
			ResolutionType:  domain.ResolutionAutoResolved,
			MatchesOriginal: i < 2,
		}
		require.NoError(t, s.AppendReplayRun(ctx, run))
	}

	// Appends bump the running match aggregate.
	got, err := s.GetReplaySession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Matches)
	assert.Nil(t, got.StabilityScore)

	score := 0.667
	now := time.Now().UTC()
	session.Matches = 2
	session.StabilityScore = &score
	session.Status = domain.ReplayStatusCompleted
	session.CompletedAt = &now
	require.NoError(t, s.CompleteReplaySession(ctx, session))

	got, err = s.GetReplaySession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReplayStatusCompleted, got.Status)
	require.NotNil(t, got.StabilityScore)
	assert.InDelta(t, 0.667, *got.StabilityScore, 1e-9)

	runs, err := s.ListReplayRuns(ctx, session.SessionID)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 0, runs[0].Variant)
	assert.True(t, runs[0].MatchesOriginal)
	assert.False(t, runs[2].MatchesOriginal)
}

func TestSeedDemoIssuesIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := SeedDemoIssues(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, len(DemoIssues), inserted)

	inserted, err = SeedDemoIssues(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, inserted)

	issues, err := s.ListIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, len(DemoIssues))
}
