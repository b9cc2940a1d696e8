// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"github.com/casepilot/casepilot/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Issue operations
	CreateIssue(ctx context.Context, issue *domain.Issue) error
	GetIssue(ctx context.Context, issueID string) (*domain.Issue, error)
	ListIssues(ctx context.Context) ([]domain.Issue, error)
	UpdateIssueStatus(ctx context.Context, issueID string, status domain.IssueStatus) error

	// RunTrace operations: create-on-start, update-on-terminal.
	CreateRunTrace(ctx context.Context, trace *domain.RunTrace) error
	UpdateRunTrace(ctx context.Context, trace *domain.RunTrace) error
	GetRunTrace(ctx context.Context, traceID string) (*domain.RunTrace, error)
	ListRunTraces(ctx context.Context, issueID string) ([]domain.RunTrace, error)

	// Replay operations
	CreateReplaySession(ctx context.Context, session *domain.ReplaySession) error
	AppendReplayRun(ctx context.Context, run *domain.ReplayRun) error
	CompleteReplaySession(ctx context.Context, session *domain.ReplaySession) error
	GetReplaySession(ctx context.Context, sessionID string) (*domain.ReplaySession, error)
	ListReplayRuns(ctx context.Context, sessionID string) ([]domain.ReplayRun, error)

	// Lifecycle
	Close() error
}
