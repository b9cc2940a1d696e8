package service

import (
	"context"
	"fmt"

	"github.com/casepilot/casepilot/domain"
)

// ListIssues returns all tracked issues.
func (s *Service) ListIssues(ctx context.Context) ([]domain.Issue, error) {
	issues, err := s.store.ListIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	return issues, nil
}

// GetIssue returns one issue by ID.
func (s *Service) GetIssue(ctx context.Context, issueID string) (*domain.Issue, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to load issue: %w", err)
	}
	if issue == nil {
		return nil, fmt.Errorf("%w: %s", ErrIssueNotFound, issueID)
	}
	return issue, nil
}

// GetRunTrace returns one investigation trace by ID.
func (s *Service) GetRunTrace(ctx context.Context, traceID string) (*domain.RunTrace, error) {
	trace, err := s.store.GetRunTrace(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	if trace == nil {
		return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
	}
	return trace, nil
}

// ListRunTraces returns traces for an issue, newest first.
func (s *Service) ListRunTraces(ctx context.Context, issueID string) ([]domain.RunTrace, error) {
	traces, err := s.store.ListRunTraces(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	return traces, nil
}
