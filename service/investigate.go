package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/casepilot/casepilot/domain"
	"github.com/casepilot/casepilot/llm"
)

// MaxTurns bounds the investigation loop. A model that has not submitted
// a resolution by then is forced into an escalation verdict.
const MaxTurns = 15

// Investigate runs a full investigation for an issue and persists the trace.
func (s *Service) Investigate(ctx context.Context, issueID string) (*domain.RunTrace, error) {
	return s.investigate(ctx, issueID, "", nil)
}

// investigate is the shared loop behind Investigate and replay runs.
// messageOverride, when non-empty, replaces the issue's raw message; seed
// is forwarded to every completion call for deterministic replays.
func (s *Service) investigate(ctx context.Context, issueID, messageOverride string, seed *int) (*domain.RunTrace, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load issue: %w", err)
	}
	if issue == nil {
		return nil, fmt.Errorf("%w: %s", ErrIssueNotFound, issueID)
	}
	if messageOverride != "" {
		clone := *issue
		clone.RawMessage = messageOverride
		issue = &clone
	}
	if issue.RawMessage == "" {
		return nil, fmt.Errorf("%w: issue %s has no message to investigate", ErrInvalidInput, issue.IssueID)
	}

	trace := &domain.RunTrace{
		TraceID:    "trace_" + uuid.New().String()[:8],
		IssueID:    issue.IssueID,
		CustomerID: issue.CustomerID,
		Status:     domain.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
		Model:      s.config.Model,
	}
	if err := s.store.CreateRunTrace(ctx, trace); err != nil {
		return nil, fmt.Errorf("failed to create trace: %w", err)
	}
	if err := s.store.UpdateIssueStatus(ctx, issue.IssueID, domain.IssueStatusInvestigating); err != nil {
		log.Printf("ERROR: failed to mark issue investigating: %v", err)
	}

	log.Printf("investigation started: trace=%s issue=%s customer=%s",
		trace.TraceID, issue.IssueID, issue.CustomerID)

	allTools := append(s.catalog.LLMTools(), terminalTool())
	messages := []llm.ChatMessage{
		{Role: "user", Content: openingMessage(issue)},
	}

	for turn := 0; turn < MaxTurns; turn++ {
		action, err := s.llm.NextAction(ctx, &llm.ActionRequest{
			Model:    s.config.Model,
			System:   systemPrompt,
			Messages: messages,
			Tools:    allTools,
			Seed:     seed,
		})
		if err != nil {
			return s.finalizeFailed(ctx, trace, fmt.Errorf("completion failed: %w", err))
		}

		trace.TokenCount += action.Usage.TotalTokens
		if action.Reasoning != "" {
			if trace.Reasoning != "" {
				trace.Reasoning += "\n"
			}
			trace.Reasoning += action.Reasoning
		}

		switch {
		case action.Final != nil:
			output, err := s.interceptVerdict(action.Final)
			if err != nil {
				return s.finalizeFailed(ctx, trace, err)
			}
			log.Printf("resolution submitted: trace=%s turn=%d type=%s",
				trace.TraceID, turn, output.ResolutionType)
			return s.finalizeVerdict(ctx, issue, trace, output)

		case action.Tool != nil:
			res := s.dispatchTool(ctx, action.Tool)
			trace.ToolCalls = append(trace.ToolCalls, res.Record)
			if res.Fatal != nil {
				return s.finalizeFailed(ctx, trace, res.Fatal)
			}
			messages = append(messages, action.Assistant, llm.ChatMessage{
				Role:       "tool",
				ToolCallID: action.Tool.ID,
				Content:    string(res.Payload),
			})

		default:
			// Prose with no tool call. The model has nothing more to do
			// but never submitted a resolution; stop and force escalation.
			log.Printf("investigation ended without resolution: trace=%s turn=%d", trace.TraceID, turn)
			return s.finalizeVerdict(ctx, issue, trace, forcedEscalationOutput())
		}
	}

	log.Printf("max turns reached: trace=%s", trace.TraceID)
	return s.finalizeVerdict(ctx, issue, trace, forcedEscalationOutput())
}

// forcedEscalationOutput is the synthesized verdict for a run that hit the
// turn ceiling (or stopped talking) without submitting a resolution.
func forcedEscalationOutput() *domain.StructuredOutput {
	out := &domain.StructuredOutput{
		IssueType:          "GENERAL",
		RootCause:          "Investigation did not reach a conclusion within the allowed turns.",
		Resolution:         "Escalating for human review.",
		ResolutionType:     domain.ResolutionEscalated,
		NextSteps:          []string{"Human agent to review investigation trace and complete manually."},
		ConfidenceScore:    0.0,
		EscalationPriority: domain.PriorityMedium,
		PolicyFlags:        []string{domain.FlagMaxTurnsExceeded},
	}
	out.ForceEscalate()
	return out
}

// finalizeVerdict applies the policy layer, runs the critic, and persists
// the completed trace plus the issue status transition.
func (s *Service) finalizeVerdict(ctx context.Context, issue *domain.Issue, trace *domain.RunTrace, output *domain.StructuredOutput) (*domain.RunTrace, error) {
	verdict, err := s.policyEngine.Evaluate(ctx, map[string]interface{}{
		"issue_type":         output.IssueType,
		"resolution_type":    string(output.ResolutionType),
		"confidence_score":   output.ConfidenceScore,
		"escalate":           output.ShouldEscalate(),
		"policy_flags":       flagsOrEmpty(output.PolicyFlags),
		"auto_resolve_floor": s.config.AutoResolveConfidenceFloor,
	})
	if err != nil {
		log.Printf("ERROR: policy evaluation failed: %v", err)
	} else {
		for _, f := range verdict.Flags {
			output.AddFlag(f)
		}
		if verdict.Escalate {
			output.ForceEscalate()
		}
	}

	output.SyncRaw()

	s.reviewVerdict(ctx, issue.IssueID, trace, output)

	trace.Output = output
	trace.ConfidenceScore = output.ConfidenceScore
	trace.Escalate = output.ShouldEscalate()
	trace.EscalationPriority = output.EscalationPriority
	trace.PolicyFlags = output.PolicyFlags

	now := time.Now().UTC()
	trace.CompletedAt = &now
	trace.DurationMS = round2(float64(now.Sub(trace.StartedAt).Microseconds()) / 1000.0)

	issueStatus := domain.IssueStatusResolved
	trace.Status = domain.RunStatusCompleted
	if trace.Escalate {
		trace.Status = domain.RunStatusEscalated
		issueStatus = domain.IssueStatusEscalated
	}

	if err := s.store.UpdateRunTrace(ctx, trace); err != nil {
		return nil, fmt.Errorf("failed to persist trace: %w", err)
	}
	if err := s.store.UpdateIssueStatus(ctx, issue.IssueID, issueStatus); err != nil {
		log.Printf("ERROR: failed to update issue status: %v", err)
	}
	return trace, nil
}

// finalizeFailed records a run that aborted before producing a verdict.
// Partial tool call records are preserved for the audit trail.
func (s *Service) finalizeFailed(ctx context.Context, trace *domain.RunTrace, cause error) (*domain.RunTrace, error) {
	log.Printf("ERROR: investigation failed: trace=%s: %v", trace.TraceID, cause)

	now := time.Now().UTC()
	trace.Status = domain.RunStatusFailed
	trace.CompletedAt = &now
	trace.DurationMS = round2(float64(now.Sub(trace.StartedAt).Microseconds()) / 1000.0)
	trace.ConfidenceScore = 0.0
	trace.Escalate = true
	trace.EscalationPriority = domain.PriorityHigh
	trace.Error = cause.Error()

	if err := s.store.UpdateRunTrace(ctx, trace); err != nil {
		log.Printf("ERROR: failed to persist failed trace: %v", err)
	}
	return trace, nil
}

func flagsOrEmpty(flags []string) []string {
	if flags == nil {
		return []string{}
	}
	return flags
}
