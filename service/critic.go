package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/casepilot/casepilot/domain"
	"github.com/casepilot/casepilot/llm"
)

// reviewVerdict has the cheap model audit the verdict. It is best-effort
// and purely additive; any failure records the safe fallback so the trace
// always persists.
func (s *Service) reviewVerdict(ctx context.Context, issueID string, trace *domain.RunTrace, output *domain.StructuredOutput) {
	agrees := true
	note := "Critic review unavailable."

	raw, _, err := s.llm.Generate(ctx, &llm.GenerateRequest{
		Model:     s.config.CheapModel,
		System:    criticSystem,
		Prompt:    criticContext(issueID, output, trace.Reasoning),
		MaxTokens: 300,
	})
	if err != nil {
		log.Printf("ERROR: critic review failed: issue=%s: %v", issueID, err)
	} else {
		var parsed struct {
			Agrees *bool  `json:"agrees"`
			Note   string `json:"note"`
		}
		if jerr := json.Unmarshal([]byte(raw), &parsed); jerr != nil || parsed.Agrees == nil {
			log.Printf("ERROR: critic returned unparseable review: issue=%s", issueID)
		} else {
			agrees = *parsed.Agrees
			note = parsed.Note
		}
	}

	trace.CriticAgrees = &agrees
	trace.CriticNote = note
	trace.CriticModel = s.config.CheapModel
}
