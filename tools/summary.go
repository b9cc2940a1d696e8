package tools

import (
	"encoding/json"
	"fmt"
)

// Summarize produces a one-line description of a tool result for trace
// records. It never fails; unrecognized shapes fall back to a field count.
func Summarize(tool string, result json.RawMessage) string {
	var m map[string]interface{}
	if err := json.Unmarshal(result, &m); err != nil {
		return fmt.Sprintf("%d byte(s) returned", len(result))
	}
	if errMsg, ok := m["error"].(string); ok {
		return "ERROR: " + errMsg
	}

	switch tool {
	case "customer_lookup":
		return fmt.Sprintf("Customer: %s | KYC: %s", str(m, "name"), str(m, "kyc_status"))
	case "account_lookup":
		return fmt.Sprintf("%s account(s) found", num(m, "count"))
	case "account_login_history":
		return fmt.Sprintf("%s login event(s), countries: %s", num(m, "count"), list(m, "unique_countries"))
	case "account_communication_history":
		return fmt.Sprintf("%s communication(s) on file", num(m, "count"))
	case "transactions_search":
		return fmt.Sprintf("%s transaction(s) matched", num(m, "count"))
	case "transactions_metadata":
		return fmt.Sprintf("%s %s: %s", str(m, "transaction_type"), money(m, "amount"), str(m, "status"))
	case "policy_search":
		return fmt.Sprintf("%s policy section(s) retrieved", num(m, "count"))
	case "cases_similar":
		return fmt.Sprintf("%s similar case(s) found", num(m, "count"))
	}
	return fmt.Sprintf("%d field(s) returned", len(m))
}

func str(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return "unknown"
}

func num(m map[string]interface{}, key string) string {
	if f, ok := m[key].(float64); ok {
		return fmt.Sprintf("%d", int(f))
	}
	return "0"
}

func money(m map[string]interface{}, key string) string {
	if f, ok := m[key].(float64); ok {
		return fmt.Sprintf("$%.2f", f)
	}
	return "$?"
}

func list(m map[string]interface{}, key string) string {
	items, ok := m[key].([]interface{})
	if !ok || len(items) == 0 {
		return "none"
	}
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprint(it)
	}
	return out
}
