package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casepilot/casepilot/domain"
	"github.com/casepilot/casepilot/llm"
)

func TestDefaultCatalogDeclaresAllTools(t *testing.T) {
	c := DefaultCatalog()

	names := []string{
		"customer_lookup", "account_lookup", "account_login_history",
		"account_communication_history", "transactions_search",
		"transactions_metadata", "policy_search", "cases_similar",
	}
	assert.Len(t, c.Entries(), len(names))
	for _, name := range names {
		entry := c.Get(name)
		require.NotNil(t, entry, name)
		assert.NotEmpty(t, entry.Description)
		assert.True(t, entry.Recoverable)
	}

	assert.Equal(t, domain.ToolClassReference, c.Get("policy_search").Class)
	assert.Equal(t, domain.ToolClassSearch, c.Get("cases_similar").Class)
	assert.Equal(t, domain.ToolClassLookup, c.Get("customer_lookup").Class)
}

func TestNewCatalogRejectsReservedName(t *testing.T) {
	_, err := NewCatalog([]domain.ToolCatalogEntry{
		{Name: llm.TerminalToolName, Class: domain.ToolClassLookup},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]domain.ToolCatalogEntry{
		{Name: "customer_lookup", Class: domain.ToolClassLookup},
		{Name: "customer_lookup", Class: domain.ToolClassLookup},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadCatalogYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `tools:
  - name: customer_lookup
    description: Look up a customer profile.
    class: lookup
    recoverable: true
  - name: policy_search
    description: Search policy documents.
    class: reference
    recoverable: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
	assert.Equal(t, domain.ToolClassReference, c.Get("policy_search").Class)
}

func TestLoadCatalogRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools: []\n"), 0o644))

	_, err := LoadCatalog(path)
	require.Error(t, err)
}

func TestLLMToolsConversion(t *testing.T) {
	c := DefaultCatalog()
	llmTools := c.LLMTools()

	require.Len(t, llmTools, len(c.Entries()))
	for _, tool := range llmTools {
		assert.Equal(t, "function", tool.Type)
		assert.NotEqual(t, llm.TerminalToolName, tool.Function.Name)
		assert.NotNil(t, tool.Function.Parameters)
	}
}
