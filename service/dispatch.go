package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/casepilot/casepilot/cache"
	"github.com/casepilot/casepilot/domain"
	"github.com/casepilot/casepilot/llm"
	"github.com/casepilot/casepilot/tools"
)

// dispatchResult is what a single tool call contributes back to the loop.
type dispatchResult struct {
	Record  domain.ToolCallRecord
	Payload json.RawMessage
	Fatal   error
}

// dispatchTool executes a requested tool through the result cache.
// Recoverable failures are reported back to the model as an error payload;
// fatal ones abort the run.
func (s *Service) dispatchTool(ctx context.Context, req *llm.ToolRequest) *dispatchResult {
	entry := s.catalog.Get(req.Name)
	if entry == nil {
		// The model asked for a tool that was never offered. Tell it so.
		payload, _ := json.Marshal(map[string]string{
			"error": fmt.Sprintf("Tool '%s' is not available.", req.Name),
		})
		return &dispatchResult{
			Record: domain.ToolCallRecord{
				Tool:          req.Name,
				ArgsDigest:    cache.Digest(req.Args),
				ResultSummary: fmt.Sprintf("ERROR: unknown tool '%s'", req.Name),
			},
			Payload: payload,
		}
	}

	key := cache.Key(req.Name, req.Args)
	ttl := s.config.TTLFor(string(entry.Class))

	start := time.Now()
	result, hit, err := s.cache.Fetch(key, ttl, func() (json.RawMessage, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.config.ToolTimeout)
		defer cancel()
		return s.registry.Execute(callCtx, req.Name, req.Args)
	})
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	record := domain.ToolCallRecord{
		Tool:       req.Name,
		ArgsDigest: cache.Digest(req.Args),
		LatencyMS:  round2(latency),
		CacheHit:   hit,
	}

	if err != nil {
		if !entry.Recoverable {
			record.ResultSummary = fmt.Sprintf("ERROR: %v", err)
			return &dispatchResult{Record: record, Fatal: fmt.Errorf("tool %s failed: %w", req.Name, err)}
		}
		log.Printf("ERROR: tool %s failed (recovering): %v", req.Name, err)
		record.ResultSummary = fmt.Sprintf("ERROR: %v", err)
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return &dispatchResult{Record: record, Payload: payload}
	}

	record.ResultSummary = tools.Summarize(req.Name, result)
	return &dispatchResult{Record: record, Payload: result}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
