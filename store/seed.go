package store

import (
	"context"
	"time"

	"github.com/casepilot/casepilot/domain"
)

// DemoIssues is the six-scenario demo corpus: wire + AML hold, RRSP
// over-contribution, unauthorized trade, T5 mismatch, e-transfer refund
// gap, and a KYC-expiry account freeze.
var DemoIssues = []domain.Issue{
	{
		IssueID:    "issue-wire-aml-0001",
		CustomerID: "cust-alex-chen-0001",
		RawMessage: "My $15,000 wire transfer from TD Bank hasn't shown up in 4 business days " +
			"and my account seems partially restricted. I need this money urgently to " +
			"close on a property purchase.",
		Channel: "chat",
		Urgency: "high",
	},
	{
		IssueID:    "issue-rrsp-over-0002",
		CustomerID: "cust-sarah-patel-0002",
		RawMessage: "I just transferred $20,000 into my RRSP but I received a warning email " +
			"about my contribution room. Am I going to be penalized by CRA? I'm worried " +
			"about the 1% monthly penalty.",
		Channel: "email",
		Urgency: "medium",
	},
	{
		IssueID:    "issue-unauth-trade-0003",
		CustomerID: "cust-james-wong-0003",
		RawMessage: "I just checked my account and there's a sell order on my Apple shares " +
			"for $8,400 that I never placed. I did not make this trade. Someone may " +
			"have gotten into my account.",
		Channel: "chat",
		Urgency: "critical",
	},
	{
		IssueID:    "issue-t5-mismatch-0004",
		CustomerID: "cust-maria-silva-0004",
		RawMessage: "My T5 slip from Wealthsimple shows $1,200 in dividend income, but when " +
			"I add up all the dividend payments I received in my account I only get $890. " +
			"My accountant says I need to report the T5 amount but I don't understand " +
			"the discrepancy. My taxes are due soon.",
		Channel: "email",
		Urgency: "medium",
	},
	{
		IssueID:    "issue-etransfer-fail-0005",
		CustomerID: "cust-david-kim-0005",
		RawMessage: "I tried to send $500 to my friend twice because the first one said it " +
			"failed. Now both transactions show as failed but only one refund came " +
			"back to my account. I'm missing $500.",
		Channel: "chat",
		Urgency: "medium",
	},
	{
		IssueID:    "issue-kyc-frozen-0006",
		CustomerID: "cust-emma-tremblay-0006",
		RawMessage: "My account is completely locked. I can't log in or access " +
			"any of my money. I've had the account for 3 years and nothing like this " +
			"has ever happened before. What is going on?",
		Channel: "chat",
		Urgency: "high",
	},
}

// SeedDemoIssues inserts the demo corpus, skipping issues that already exist.
func SeedDemoIssues(ctx context.Context, s Store) (int, error) {
	inserted := 0
	for _, issue := range DemoIssues {
		existing, err := s.GetIssue(ctx, issue.IssueID)
		if err != nil {
			return inserted, err
		}
		if existing != nil {
			continue
		}
		issue.Status = domain.IssueStatusOpen
		issue.CreatedAt = time.Now()
		if err := s.CreateIssue(ctx, &issue); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
