package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/casepilot/casepilot/domain"
	"github.com/casepilot/casepilot/llm"
)

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*?\]`)

// Replay reruns an investigation against n paraphrased variants of the
// original customer message and scores verdict stability: the fraction of
// variants whose resolution_type AND escalate match the source trace.
func (s *Service) Replay(ctx context.Context, traceID string, n int, seed *int) (*domain.ReplaySession, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n must be at least 1", ErrInvalidInput)
	}

	source, err := s.store.GetRunTrace(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
	}
	if source.Output == nil {
		return nil, fmt.Errorf("%w: trace %s has no verdict to replay against", ErrInvalidInput, traceID)
	}

	issue, err := s.store.GetIssue(ctx, source.IssueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load issue: %w", err)
	}
	if issue == nil {
		return nil, fmt.Errorf("%w: %s", ErrIssueNotFound, source.IssueID)
	}

	session := &domain.ReplaySession{
		SessionID:     "replay_" + uuid.New().String()[:8],
		SourceTraceID: traceID,
		IssueID:       source.IssueID,
		NRuns:         n,
		Status:        domain.ReplayStatusRunning,
		StartedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateReplaySession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create replay session: %w", err)
	}

	paraphrases := s.generateParaphrases(ctx, issue.RawMessage, n, seed)

	log.Printf("replay started: session=%s source=%s n=%d", session.SessionID, traceID, n)

	var mu sync.Mutex
	matches := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ReplayParallelism)
	for i, paraphrase := range paraphrases {
		variant, paraphrase := i, paraphrase
		g.Go(func() error {
			run := domain.ReplayRun{
				RunID:      "rrun_" + uuid.New().String()[:8],
				SessionID:  session.SessionID,
				Variant:    variant,
				Paraphrase: paraphrase,
			}

			trace, err := s.investigate(gctx, issue.IssueID, paraphrase, seed)
			if err != nil {
				log.Printf("ERROR: replay variant %d failed: %v", variant, err)
			} else {
				run.TraceID = trace.TraceID
				if trace.Output != nil {
					run.ResolutionType = trace.Output.ResolutionType
					run.Escalate = trace.Escalate
					run.MatchesOriginal = trace.Output.ResolutionType == source.Output.ResolutionType &&
						trace.Escalate == source.Escalate
				}
			}

			if run.MatchesOriginal {
				mu.Lock()
				matches++
				mu.Unlock()
			}
			if err := s.store.AppendReplayRun(ctx, &run); err != nil {
				log.Printf("ERROR: failed to persist replay run: %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		s.failReplaySession(session)
		return nil, fmt.Errorf("replay session %s aborted: %w", session.SessionID, ctx.Err())
	}

	score := stabilityScore(matches, n)
	now := time.Now().UTC()
	session.Matches = matches
	session.StabilityScore = &score
	session.Status = domain.ReplayStatusCompleted
	session.CompletedAt = &now

	if err := s.store.CompleteReplaySession(ctx, session); err != nil {
		s.failReplaySession(session)
		return nil, fmt.Errorf("failed to complete replay session: %w", err)
	}

	log.Printf("replay completed: session=%s stability=%.3f", session.SessionID, score)
	return session, nil
}

// failReplaySession records a session that could not finish. It writes on
// a detached context since the usual cause is the caller's context dying
// mid-session, and a session must never stay running forever.
func (s *Service) failReplaySession(session *domain.ReplaySession) {
	now := time.Now().UTC()
	session.Status = domain.ReplayStatusFailed
	session.CompletedAt = &now

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.CompleteReplaySession(ctx, session); err != nil {
		log.Printf("ERROR: failed to mark replay session failed: %v", err)
	}
}

// GetReplaySession returns a session with its runs.
func (s *Service) GetReplaySession(ctx context.Context, sessionID string) (*domain.ReplaySession, []domain.ReplayRun, error) {
	session, err := s.store.GetReplaySession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load replay session: %w", err)
	}
	if session == nil {
		return nil, nil, fmt.Errorf("%w: replay session %s", ErrTraceNotFound, sessionID)
	}
	runs, err := s.store.ListReplayRuns(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load replay runs: %w", err)
	}
	return session, runs, nil
}

// generateParaphrases asks the cheap model for n reworded variants. Any
// failure falls back to deterministic rule-based templates so a replay
// session always has its full complement of variants.
func (s *Service) generateParaphrases(ctx context.Context, message string, n int, seed *int) []string {
	raw, _, err := s.llm.Generate(ctx, &llm.GenerateRequest{
		Model:     s.config.CheapModel,
		Prompt:    paraphrasePrompt(message, n),
		MaxTokens: 1500,
		Seed:      seed,
	})
	if err != nil {
		log.Printf("ERROR: paraphrase generation failed, using rule-based fallback: %v", err)
		return ruleBasedParaphrases(message, n)
	}

	if parsed := parseParaphrases(raw, n); parsed != nil {
		return parsed
	}
	log.Printf("ERROR: paraphrase output unparseable, using rule-based fallback")
	return ruleBasedParaphrases(message, n)
}

func parseParaphrases(raw string, n int) []string {
	var parsed []string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		// The model sometimes wraps the array in prose. Salvage it.
		match := jsonArrayPattern.FindString(raw)
		if match == "" || json.Unmarshal([]byte(match), &parsed) != nil {
			return nil
		}
	}
	if len(parsed) < n {
		return nil
	}
	return parsed[:n]
}

func ruleBasedParaphrases(message string, n int) []string {
	variants := []string{
		fmt.Sprintf("Hi support team, I need help with the following: %s", message),
		fmt.Sprintf("To whom it may concern: %s Please advise on next steps.", message),
		fmt.Sprintf("Hello, I'm reaching out regarding an issue. %s Appreciate your assistance.", message),
		fmt.Sprintf("I wanted to follow up on this matter urgently. %s", message),
		fmt.Sprintf("Good day. I have a concern I need resolved: %s Thank you.", message),
	}
	for len(variants) < n {
		variants = append(variants, fmt.Sprintf("Following up again (attempt %d): %s", len(variants)+1, message))
	}
	return variants[:n]
}

func stabilityScore(matches, n int) float64 {
	if n == 0 {
		return 0.0
	}
	return math.Round(float64(matches)/float64(n)*1000) / 1000
}
