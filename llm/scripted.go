package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient is a Completion implementation for testing: it replays a
// fixed sequence of actions and generate outputs.
type ScriptedClient struct {
	mu        sync.Mutex
	actions   []*Action
	generated []string
	actionIdx int
	genIdx    int

	// ActionErr / GenerateErr, when set, are returned instead of the next
	// scripted value.
	ActionErr   error
	GenerateErr error

	// NextActionFunc, when set, overrides the scripted sequence entirely.
	NextActionFunc func(ctx context.Context, req *ActionRequest) (*Action, error)

	// Calls records every ActionRequest seen, in order.
	Calls []*ActionRequest
}

// Ensure ScriptedClient implements Completion.
var _ Completion = (*ScriptedClient)(nil)

// NewScriptedClient creates a scripted client replaying the given actions.
func NewScriptedClient(actions ...*Action) *ScriptedClient {
	return &ScriptedClient{actions: actions}
}

// Script appends actions to the sequence.
func (s *ScriptedClient) Script(actions ...*Action) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, actions...)
	return s
}

// ScriptGenerate appends plain-completion outputs to the sequence.
func (s *ScriptedClient) ScriptGenerate(outputs ...string) *ScriptedClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated = append(s.generated, outputs...)
	return s
}

// NextAction returns the next scripted action.
func (s *ScriptedClient) NextAction(ctx context.Context, req *ActionRequest) (*Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, req)
	if s.NextActionFunc != nil {
		return s.NextActionFunc(ctx, req)
	}
	if s.ActionErr != nil {
		return nil, s.ActionErr
	}
	if s.actionIdx >= len(s.actions) {
		return nil, fmt.Errorf("scripted client exhausted after %d actions", len(s.actions))
	}
	a := s.actions[s.actionIdx]
	s.actionIdx++
	return a, nil
}

// Generate returns the next scripted output. When the script runs out it
// keeps returning the last output, so replay fan-out tests don't need to
// count paraphrase calls exactly.
func (s *ScriptedClient) Generate(ctx context.Context, req *GenerateRequest) (string, Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GenerateErr != nil {
		return "", Usage{}, s.GenerateErr
	}
	if len(s.generated) == 0 {
		return "", Usage{}, fmt.Errorf("scripted client has no generate outputs")
	}
	out := s.generated[s.genIdx]
	if s.genIdx < len(s.generated)-1 {
		s.genIdx++
	}
	return out, Usage{TotalTokens: len(out) / 4}, nil
}
