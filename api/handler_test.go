package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/casepilot/casepilot/cache"
	"github.com/casepilot/casepilot/config"
	"github.com/casepilot/casepilot/domain"
	"github.com/casepilot/casepilot/llm"
	"github.com/casepilot/casepilot/policy"
	"github.com/casepilot/casepilot/service"
	"github.com/casepilot/casepilot/store"
	"github.com/casepilot/casepilot/tests/helpers"
	"github.com/casepilot/casepilot/tools"
)

const testVerdict = `{
	"issue_type": "WIRE_DELAY",
	"root_cause": "AML hold on an inbound wire over the FINTRAC threshold.",
	"resolution": "Funds release automatically once the review clears.",
	"resolution_type": "AUTO_RESOLVED",
	"next_steps": ["Wait for the review to complete."],
	"confidence_score": 0.9,
	"escalate": false,
	"policy_flags": ["AML_REVIEW_TRIGGERED"]
}`

func newTestHandler(t *testing.T, client llm.Completion) *Handler {
	t.Helper()
	st := helpers.NewTestSQLiteStore(t)
	if _, err := store.SeedDemoIssues(context.Background(), st); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	registry := tools.NewRegistry()
	tools.RegisterBuiltin(registry)

	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	cfg := config.Load()
	svc := service.New(st, client, registry, tools.DefaultCatalog(), cache.New(), policyEngine, cfg)
	return NewHandler(svc, cfg)
}

func scriptedFinal(t *testing.T) llm.Completion {
	t.Helper()
	client := &llm.ScriptedClient{
		NextActionFunc: func(ctx context.Context, req *llm.ActionRequest) (*llm.Action, error) {
			return &llm.Action{
				Final:     json.RawMessage(testVerdict),
				Assistant: llm.ChatMessage{Role: "assistant"},
				Usage:     llm.Usage{TotalTokens: 200},
			}, nil
		},
	}
	client.ScriptGenerate(`{"agrees": true, "note": "Sound."}`)
	return client
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, llm.NewScriptedClient())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Health(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", body["status"])
	}
	if _, ok := body["cache"]; !ok {
		t.Fatal("expected cache counters in health response")
	}
}

func TestListIssues(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, llm.NewScriptedClient())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/issues", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListIssues(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Issues []domain.Issue `json:"issues"`
		Count  int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != len(store.DemoIssues) {
		t.Fatalf("expected %d issues, got %d", len(store.DemoIssues), body.Count)
	}
}

func TestInvestigateEndpoint(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, scriptedFinal(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/investigate/issue-wire-aml-0001", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("issue_id")
	c.SetParamValues("issue-wire-aml-0001")

	if err := h.Investigate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var trace domain.RunTrace
	if err := json.Unmarshal(rec.Body.Bytes(), &trace); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if trace.Status != domain.RunStatusCompleted {
		t.Fatalf("expected completed, got %s", trace.Status)
	}
	if trace.Output == nil || trace.Output.ResolutionType != domain.ResolutionAutoResolved {
		t.Fatalf("unexpected output: %+v", trace.Output)
	}

	// The trace is retrievable afterwards.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+trace.TraceID, nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("trace_id")
	c.SetParamValues(trace.TraceID)

	if err := h.GetRunTrace(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestInvestigateUnknownIssue(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, llm.NewScriptedClient())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/investigate/issue-nope", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("issue_id")
	c.SetParamValues("issue-nope")

	if err := h.Investigate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetRunTraceNotFound(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, llm.NewScriptedClient())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/trace_nope", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("trace_id")
	c.SetParamValues("trace_nope")

	if err := h.GetRunTrace(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReplayEndpoint(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, scriptedFinal(t))

	// Produce a source trace first.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/investigate/issue-wire-aml-0001", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("issue_id")
	c.SetParamValues("issue-wire-aml-0001")
	if err := h.Investigate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var trace domain.RunTrace
	if err := json.Unmarshal(rec.Body.Bytes(), &trace); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	body := bytes.NewBufferString(`{"n": 2}`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/replay/"+trace.TraceID, body)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("trace_id")
	c.SetParamValues(trace.TraceID)

	if err := h.Replay(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var session domain.ReplaySession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if session.Status != domain.ReplayStatusCompleted {
		t.Fatalf("expected completed, got %s", session.Status)
	}
	if session.StabilityScore == nil || *session.StabilityScore != 1.0 {
		t.Fatalf("expected stability 1.0, got %v", session.StabilityScore)
	}

	// Session with its runs is retrievable.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/replay/"+session.SessionID, nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(session.SessionID)

	if err := h.GetReplaySession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		Runs []domain.ReplayRun `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got.Runs))
	}
}

func TestReplayUnknownTrace(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, llm.NewScriptedClient())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/replay/trace_nope", bytes.NewBufferString(`{"n": 2}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("trace_id")
	c.SetParamValues("trace_nope")

	if err := h.Replay(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
