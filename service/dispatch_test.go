package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casepilot/casepilot/cache"
	"github.com/casepilot/casepilot/config"
	"github.com/casepilot/casepilot/domain"
	"github.com/casepilot/casepilot/llm"
	"github.com/casepilot/casepilot/policy"
	"github.com/casepilot/casepilot/tests/helpers"
	"github.com/casepilot/casepilot/tools"
)

func TestDispatchToolCachesIdenticalCalls(t *testing.T) {
	svc, _ := newTestService(t, llm.NewScriptedClient())
	req := &llm.ToolRequest{
		ID:   "call_1",
		Name: "customer_lookup",
		Args: json.RawMessage(`{"customer_id":"cust-alex-chen-0001"}`),
	}

	first := svc.dispatchTool(context.Background(), req)
	require.NoError(t, first.Fatal)
	assert.False(t, first.Record.CacheHit)

	second := svc.dispatchTool(context.Background(), req)
	require.NoError(t, second.Fatal)
	assert.True(t, second.Record.CacheHit)

	// Same digest, same payload, same summary either way.
	assert.Equal(t, first.Record.ArgsDigest, second.Record.ArgsDigest)
	assert.Equal(t, first.Record.ResultSummary, second.Record.ResultSummary)
	assert.JSONEq(t, string(first.Payload), string(second.Payload))
}

func TestDispatchToolCacheHitFasterThanExecution(t *testing.T) {
	st := helpers.NewTestSQLiteStore(t)

	registry := tools.NewRegistry()
	registry.MustRegister("rate_sheet", func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		time.Sleep(25 * time.Millisecond)
		return json.RawMessage(`{"rate": 0.05}`), nil
	})
	catalog, err := tools.NewCatalog([]domain.ToolCatalogEntry{{
		Name:        "rate_sheet",
		Description: "Static reference rate sheet.",
		Class:       domain.ToolClassReference,
		Recoverable: true,
	}})
	require.NoError(t, err)

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	svc := New(st, llm.NewScriptedClient(), registry, catalog, cache.New(), engine, config.Load())

	req := &llm.ToolRequest{Name: "rate_sheet", Args: json.RawMessage(`{}`)}

	first := svc.dispatchTool(context.Background(), req)
	require.NoError(t, first.Fatal)
	require.False(t, first.Record.CacheHit)

	second := svc.dispatchTool(context.Background(), req)
	require.NoError(t, second.Fatal)
	require.True(t, second.Record.CacheHit)
	assert.Less(t, second.Record.LatencyMS, first.Record.LatencyMS)
}

func TestDispatchToolKeyOrderInsensitive(t *testing.T) {
	svc, _ := newTestService(t, llm.NewScriptedClient())

	first := svc.dispatchTool(context.Background(), &llm.ToolRequest{
		Name: "transactions_search",
		Args: json.RawMessage(`{"customer_id":"cust-alex-chen-0001","transaction_type":"wire_in"}`),
	})
	second := svc.dispatchTool(context.Background(), &llm.ToolRequest{
		Name: "transactions_search",
		Args: json.RawMessage(`{"transaction_type":"wire_in","customer_id":"cust-alex-chen-0001"}`),
	})

	assert.True(t, second.Record.CacheHit)
	assert.Equal(t, first.Record.ArgsDigest, second.Record.ArgsDigest)
}

func TestDispatchToolUnknownToolRecoverable(t *testing.T) {
	svc, _ := newTestService(t, llm.NewScriptedClient())

	res := svc.dispatchTool(context.Background(), &llm.ToolRequest{
		Name: "ledger_export",
		Args: json.RawMessage(`{}`),
	})
	require.NoError(t, res.Fatal)
	assert.Contains(t, res.Record.ResultSummary, "ERROR")

	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Payload, &payload))
	assert.Contains(t, payload["error"], "not available")
}

func TestDispatchToolExecutorErrorRecoverable(t *testing.T) {
	svc, _ := newTestService(t, llm.NewScriptedClient())

	// Malformed arguments make the executor itself fail; the catalog marks
	// every builtin recoverable, so the error goes back to the model.
	res := svc.dispatchTool(context.Background(), &llm.ToolRequest{
		Name: "customer_lookup",
		Args: json.RawMessage(`{"customer_id": 42`),
	})
	require.NoError(t, res.Fatal)
	assert.Contains(t, res.Record.ResultSummary, "ERROR")
	assert.False(t, res.Record.CacheHit)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Payload, &payload))
	assert.NotEmpty(t, payload["error"])
}
