package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// RegisterBuiltin wires the simulated financial tool collaborators into a
// registry. The fixtures reproduce the demo scenarios so the engine can
// run end to end without the upstream systems.
func RegisterBuiltin(r *Registry) {
	r.MustRegister("customer_lookup", customerLookup)
	r.MustRegister("account_lookup", accountLookup)
	r.MustRegister("account_login_history", loginHistory)
	r.MustRegister("account_communication_history", communicationHistory)
	r.MustRegister("transactions_search", transactionsSearch)
	r.MustRegister("transactions_metadata", transactionsMetadata)
	r.MustRegister("policy_search", policySearch)
	r.MustRegister("cases_similar", casesSimilar)
}

type lookupArgs struct {
	CustomerID    string `json:"customer_id"`
	TransactionID string `json:"transaction_id"`
	Query         string `json:"query"`
	IssueDesc     string `json:"issue_description"`
}

func decodeArgs(args json.RawMessage) (*lookupArgs, error) {
	var a lookupArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("invalid tool arguments: %w", err)
		}
	}
	return &a, nil
}

func asJSON(v interface{}) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

var customerProfiles = map[string]map[string]interface{}{
	"cust-alex-chen-0001": {
		"customer_id": "cust-alex-chen-0001", "name": "Alex Chen", "province": "ON",
		"kyc_status": "verified", "kyc_expires_at": "2027-03-12", "risk_profile": "medium",
	},
	"cust-sarah-patel-0002": {
		"customer_id": "cust-sarah-patel-0002", "name": "Sarah Patel", "province": "BC",
		"kyc_status": "verified", "kyc_expires_at": "2026-11-02", "risk_profile": "low",
	},
	"cust-james-wong-0003": {
		"customer_id": "cust-james-wong-0003", "name": "James Wong", "province": "ON",
		"kyc_status": "verified", "kyc_expires_at": "2027-01-20", "risk_profile": "medium",
	},
	"cust-maria-silva-0004": {
		"customer_id": "cust-maria-silva-0004", "name": "Maria Silva", "province": "QC",
		"kyc_status": "verified", "kyc_expires_at": "2026-09-15", "risk_profile": "low",
	},
	"cust-david-kim-0005": {
		"customer_id": "cust-david-kim-0005", "name": "David Kim", "province": "AB",
		"kyc_status": "verified", "kyc_expires_at": "2027-05-30", "risk_profile": "low",
	},
	"cust-emma-tremblay-0006": {
		"customer_id": "cust-emma-tremblay-0006", "name": "Emma Tremblay", "province": "QC",
		"kyc_status": "expired", "kyc_expires_at": "2026-07-04", "risk_profile": "low",
	},
}

func customerLookup(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	a, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	profile, ok := customerProfiles[a.CustomerID]
	if !ok {
		return asJSON(map[string]string{"error": fmt.Sprintf("Customer '%s' not found.", a.CustomerID)})
	}
	return asJSON(profile)
}

var customerAccounts = map[string][]map[string]interface{}{
	"cust-alex-chen-0001": {
		{"account_id": "acct-alex-cash", "account_type": "Cash", "status": "restricted",
			"freeze_reason": "AML_REVIEW", "balance": 4210.55, "currency": "CAD"},
		{"account_id": "acct-alex-tfsa", "account_type": "TFSA", "status": "active",
			"balance": 38950.10, "currency": "CAD"},
	},
	"cust-sarah-patel-0002": {
		{"account_id": "acct-sarah-rrsp", "account_type": "RRSP", "status": "active",
			"balance": 61200.00, "currency": "CAD", "rrsp_contribution_ytd": 27500.00},
	},
	"cust-james-wong-0003": {
		{"account_id": "acct-james-trade", "account_type": "Cash", "status": "active",
			"balance": 15300.25, "currency": "CAD"},
	},
	"cust-maria-silva-0004": {
		{"account_id": "acct-maria-invest", "account_type": "Cash", "status": "active",
			"balance": 22840.00, "currency": "CAD"},
	},
	"cust-david-kim-0005": {
		{"account_id": "acct-david-cash", "account_type": "Cash", "status": "active",
			"balance": 2830.75, "currency": "CAD"},
	},
	"cust-emma-tremblay-0006": {
		{"account_id": "acct-emma-tfsa", "account_type": "TFSA", "status": "frozen",
			"freeze_reason": "KYC_EXPIRED", "balance": 19400.00, "currency": "CAD"},
	},
}

func accountLookup(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	a, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	accounts := customerAccounts[a.CustomerID]
	return asJSON(map[string]interface{}{"accounts": accounts, "count": len(accounts)})
}

func loginHistory(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	a, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	events := []map[string]interface{}{
		{"device_id": "device-mobile-001", "ip_country": "CA", "occurred_at": "2026-08-28T09:12:00Z"},
		{"device_id": "device-desktop-001", "ip_country": "CA", "occurred_at": "2026-08-25T20:41:00Z"},
	}
	countries := []string{"CA"}
	if a.CustomerID == "cust-james-wong-0003" {
		events = append([]map[string]interface{}{{
			"device_id": "device-unknown-foreign-001", "ip_address": "185.234.219.42",
			"ip_country": "RO", "user_agent": "Mozilla/5.0 (X11; Linux x86_64)",
			"occurred_at": "2026-08-30T00:44:00Z",
		}}, events...)
		countries = []string{"CA", "RO"}
	}
	return asJSON(map[string]interface{}{
		"login_events": events, "count": len(events),
		"unique_countries": countries, "period_days": 30,
	})
}

func communicationHistory(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	a, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	var comms []map[string]interface{}
	if a.CustomerID == "cust-emma-tremblay-0006" {
		comms = []map[string]interface{}{
			{"channel": "email", "subject": "Action Required: Your identity verification expires in 90 days"},
			{"channel": "email", "subject": "Reminder: Renew your identity verification — 30 days remaining"},
			{"channel": "email", "subject": "Urgent: Identity verification expiring in 14 days — account access at risk"},
		}
	}
	return asJSON(map[string]interface{}{"communications": comms, "count": len(comms)})
}

func transactionsSearch(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	a, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	var filters map[string]interface{}
	_ = json.Unmarshal(args, &filters)

	var txs []map[string]interface{}
	switch a.CustomerID {
	case "cust-alex-chen-0001":
		txs = []map[string]interface{}{{
			"transaction_id": "tx-alex-wire-0001", "transaction_type": "wire_in",
			"amount": 15000.00, "currency": "CAD", "status": "processing",
			"counterparty": "TD Canada Trust", "initiated_at": "2026-08-27T14:02:00Z",
		}}
	case "cust-james-wong-0003":
		txs = []map[string]interface{}{{
			"transaction_id": "tx-james-sell-0001", "transaction_type": "trade_sell",
			"amount": 8400.00, "currency": "CAD", "status": "completed",
			"description": "AAPL sell order", "initiated_at": "2026-08-30T02:14:00Z",
		}}
	case "cust-david-kim-0005":
		txs = []map[string]interface{}{
			{"transaction_id": "tx-david-et-0001", "transaction_type": "etransfer_out",
				"amount": 500.00, "status": "failed", "failure_reason": "recipient_limit_exceeded"},
			{"transaction_id": "tx-david-et-0002", "transaction_type": "etransfer_out",
				"amount": 500.00, "status": "failed", "failure_reason": "recipient_limit_exceeded"},
			{"transaction_id": "tx-david-rf-0001", "transaction_type": "etransfer_in",
				"amount": 500.00, "status": "completed", "description": "Refund — failed e-transfer"},
		}
	}
	return asJSON(map[string]interface{}{
		"transactions": txs, "count": len(txs), "filters": filters,
	})
}

var transactionDetails = map[string]map[string]interface{}{
	"tx-alex-wire-0001": {
		"transaction_id": "tx-alex-wire-0001", "transaction_type": "wire_in",
		"amount": 15000.00, "currency": "CAD", "status": "processing",
		"counterparty": "TD Canada Trust", "reference_number": "WIRE-77-5521",
		"initiated_at": "2026-08-27T14:02:00Z", "settled_at": nil,
		"metadata": map[string]interface{}{"aml_hold": true, "hold_reason": "FINTRAC threshold"},
	},
	"tx-james-sell-0001": {
		"transaction_id": "tx-james-sell-0001", "transaction_type": "trade_sell",
		"amount": 8400.00, "currency": "CAD", "status": "completed",
		"description": "AAPL sell order", "initiated_at": "2026-08-30T02:14:00Z",
		"metadata": map[string]interface{}{"device_id": "device-unknown-foreign-001", "ip_country": "RO"},
	},
}

func transactionsMetadata(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	a, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	tx, ok := transactionDetails[a.TransactionID]
	if !ok {
		return asJSON(map[string]string{"error": fmt.Sprintf("Transaction '%s' not found.", a.TransactionID)})
	}
	return asJSON(tx)
}

var policyChunks = []map[string]interface{}{
	{"topic": "wire", "title": "Inbound wire timelines and AML holds",
		"content": "Inbound wires over $10,000 CAD trigger an automatic FINTRAC AML review. " +
			"Funds are held for 3-5 business days and release automatically once the review clears. " +
			"Accounts may show a 'restricted' status during the hold."},
	{"topic": "rrsp", "title": "RRSP over-contribution handling",
		"content": "Over-contributions beyond the $2,000 lifetime buffer incur a 1% monthly CRA penalty. " +
			"Room can only be confirmed against the customer's Notice of Assessment. Escalate; do not advise."},
	{"topic": "fraud", "title": "Unauthorized activity response",
		"content": "Suspected unauthorized access or trading must be escalated to the security team " +
			"immediately. Do not discuss investigation details with the customer."},
	{"topic": "kyc", "title": "KYC expiry and account freezes",
		"content": "Accounts freeze automatically when identity verification lapses. Access restores " +
			"within one business day of re-verification."},
	{"topic": "etransfer", "title": "E-transfer failures and refunds",
		"content": "Failed e-transfers refund automatically within 3 business days. Duplicate sends " +
			"each refund independently; a missing refund after 3 days is raised to payments operations."},
}

func policySearch(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	a, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(a.Query)
	var hits []map[string]interface{}
	for _, chunk := range policyChunks {
		if strings.Contains(query, chunk["topic"].(string)) ||
			strings.Contains(strings.ToLower(chunk["content"].(string)), firstWord(query)) {
			hits = append(hits, chunk)
		}
	}
	if hits == nil && len(policyChunks) > 0 {
		hits = policyChunks[:1]
	}
	return asJSON(map[string]interface{}{"results": hits, "count": len(hits), "query": a.Query})
}

func casesSimilar(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	a, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	cases := []map[string]interface{}{
		{"issue_type": "WIRE_DELAY", "root_cause": "Inbound wire over $10,000 triggered automatic FINTRAC AML review.",
			"resolution": "Wire cleared automatically after AML review completed on day 5.", "resolution_type": "AUTO_RESOLVED"},
		{"issue_type": "WIRE_DELAY", "root_cause": "AML hold on wire exceeding FINTRAC threshold.",
			"resolution": "Account restriction lifted automatically after 3-day AML review.", "resolution_type": "AUTO_RESOLVED"},
	}
	return asJSON(map[string]interface{}{"cases": cases, "count": len(cases), "query": a.IssueDesc})
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	if s == "" {
		return " "
	}
	return s
}
