package tools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/casepilot/casepilot/domain"
	"github.com/casepilot/casepilot/llm"
)

// Catalog is the declared tool surface presented to the model. The
// reserved terminal tool is never part of a catalog; it cannot be
// registered or dispatched by accident.
type Catalog struct {
	entries []domain.ToolCatalogEntry
	byName  map[string]*domain.ToolCatalogEntry
}

// NewCatalog builds a catalog from entries, rejecting the reserved name.
func NewCatalog(entries []domain.ToolCatalogEntry) (*Catalog, error) {
	c := &Catalog{
		entries: entries,
		byName:  make(map[string]*domain.ToolCatalogEntry, len(entries)),
	}
	for i := range entries {
		e := &entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry %d has no name", i)
		}
		if e.Name == llm.TerminalToolName {
			return nil, fmt.Errorf("tool name %q is reserved", e.Name)
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", e.Name)
		}
		c.byName[e.Name] = e
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var doc struct {
		Tools []domain.ToolCatalogEntry `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(doc.Tools) == 0 {
		return nil, fmt.Errorf("catalog %s declares no tools", path)
	}
	return NewCatalog(doc.Tools)
}

// Get returns the entry for a tool name, or nil.
func (c *Catalog) Get(name string) *domain.ToolCatalogEntry {
	return c.byName[name]
}

// Entries returns the declared entries in declaration order.
func (c *Catalog) Entries() []domain.ToolCatalogEntry {
	return c.entries
}

// LLMTools converts the catalog to completion tool definitions.
func (c *Catalog) LLMTools() []llm.Tool {
	out := make([]llm.Tool, 0, len(c.entries))
	for _, e := range c.entries {
		params := e.InputSchema
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        e.Name,
				Description: e.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func schema(required []string, props map[string]interface{}) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, desc string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": desc}
}

// DefaultCatalog declares the eight financial investigation tools.
func DefaultCatalog() *Catalog {
	entries := []domain.ToolCatalogEntry{
		{
			Name: "customer_lookup",
			Description: "Look up a customer's profile: name, province, KYC status, KYC expiry date, " +
				"risk profile. Call this first to understand who the customer is and whether their " +
				"identity verification is current.",
			Class:       domain.ToolClassLookup,
			Recoverable: true,
			InputSchema: schema([]string{"customer_id"}, map[string]interface{}{
				"customer_id": prop("string", "Customer identifier."),
			}),
		},
		{
			Name: "account_lookup",
			Description: "Retrieve all accounts held by a customer: account type (TFSA, RRSP, Cash, Crypto), " +
				"status (active/frozen/restricted), freeze_reason if frozen, balances, and YTD RRSP/TFSA " +
				"contributions. Call this early to understand the account landscape.",
			Class:       domain.ToolClassLookup,
			Recoverable: true,
			InputSchema: schema([]string{"customer_id"}, map[string]interface{}{
				"customer_id": prop("string", "Customer identifier."),
			}),
		},
		{
			Name: "account_login_history",
			Description: "Retrieve recent login events: device ID, IP address, country, timestamp. Use when " +
				"investigating suspected unauthorized access — look for logins from unfamiliar countries or " +
				"unknown devices. Returns unique_countries and unique_devices summary fields.",
			Class:       domain.ToolClassLookup,
			Recoverable: true,
			InputSchema: schema([]string{"customer_id"}, map[string]interface{}{
				"customer_id": prop("string", "Customer identifier."),
				"days":        prop("integer", "Lookback window in days, capped at 90."),
			}),
		},
		{
			Name: "account_communication_history",
			Description: "Retrieve recent outbound communications sent to the customer: emails, SMS, push " +
				"notifications. Useful for confirming whether the customer was notified about KYC expiry, " +
				"an account freeze, or other events.",
			Class:       domain.ToolClassLookup,
			Recoverable: true,
			InputSchema: schema([]string{"customer_id"}, map[string]interface{}{
				"customer_id": prop("string", "Customer identifier."),
			}),
		},
		{
			Name: "transactions_search",
			Description: "Search a customer's transactions filtered by account, type (wire_in, wire_out, " +
				"deposit, withdrawal, trade_buy, trade_sell, etransfer_in, etransfer_out), status, and age.",
			Class:       domain.ToolClassLookup,
			Recoverable: true,
			InputSchema: schema([]string{"customer_id"}, map[string]interface{}{
				"customer_id":      prop("string", "Customer identifier."),
				"transaction_type": prop("string", "Transaction type filter."),
				"status":           prop("string", "Status filter: pending, processing, completed, failed."),
				"days":             prop("integer", "Lookback window in days."),
			}),
		},
		{
			Name: "transactions_metadata",
			Description: "Retrieve full metadata for one transaction by ID: amounts, counterparty, " +
				"reference number, failure reason, initiated and settled timestamps.",
			Class:       domain.ToolClassLookup,
			Recoverable: true,
			InputSchema: schema([]string{"transaction_id"}, map[string]interface{}{
				"transaction_id": prop("string", "Transaction identifier."),
			}),
		},
		{
			Name: "policy_search",
			Description: "Semantic search over internal policy documents: wire timelines, AML holds, " +
				"RRSP/TFSA rules, KYC requirements. Do NOT assume you know the rules — verify against policy.",
			Class:       domain.ToolClassReference,
			Recoverable: true,
			InputSchema: schema([]string{"query"}, map[string]interface{}{
				"query":    prop("string", "Natural-language policy question."),
				"category": prop("string", "Optional category filter."),
				"top_k":    prop("integer", "Number of chunks to return."),
			}),
		},
		{
			Name: "cases_similar",
			Description: "Similarity search over resolved historical cases. Use to check how comparable " +
				"past issues were resolved before deciding.",
			Class:       domain.ToolClassSearch,
			Recoverable: true,
			InputSchema: schema([]string{"issue_description"}, map[string]interface{}{
				"issue_description": prop("string", "Short description of the issue under investigation."),
				"top_k":             prop("integer", "Number of cases to return."),
			}),
		},
	}

	c, err := NewCatalog(entries)
	if err != nil {
		// The default catalog is static; a constructor error here is a bug.
		panic(err)
	}
	return c
}
