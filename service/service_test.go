package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/casepilot/casepilot/cache"
	"github.com/casepilot/casepilot/config"
	"github.com/casepilot/casepilot/llm"
	"github.com/casepilot/casepilot/policy"
	"github.com/casepilot/casepilot/store"
	"github.com/casepilot/casepilot/tests/helpers"
	"github.com/casepilot/casepilot/tools"
)

const criticAgreement = `{"agrees": true, "note": "Sound reasoning."}`

func newTestService(t *testing.T, client llm.Completion) (*Service, *store.SQLiteStore) {
	t.Helper()

	st := helpers.NewTestSQLiteStore(t)
	_, err := store.SeedDemoIssues(context.Background(), st)
	require.NoError(t, err)

	registry := tools.NewRegistry()
	tools.RegisterBuiltin(registry)

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	svc := New(st, client, registry, tools.DefaultCatalog(), cache.New(), engine, config.Load())
	return svc, st
}

func toolAction(id, name, args string) *llm.Action {
	return &llm.Action{
		Tool:      &llm.ToolRequest{ID: id, Name: name, Args: json.RawMessage(args)},
		Assistant: llm.ChatMessage{Role: "assistant"},
		Usage:     llm.Usage{TotalTokens: 100},
	}
}

func finalAction(payload string) *llm.Action {
	return &llm.Action{
		Final:     json.RawMessage(payload),
		Assistant: llm.ChatMessage{Role: "assistant"},
		Usage:     llm.Usage{TotalTokens: 200},
	}
}

func textAction(text string) *llm.Action {
	return &llm.Action{
		Text:      text,
		Reasoning: text,
		Assistant: llm.ChatMessage{Role: "assistant", Content: text},
		Usage:     llm.Usage{TotalTokens: 50},
	}
}
