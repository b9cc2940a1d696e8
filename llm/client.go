// Package llm provides the completion capability client: an
// OpenAI-compatible chat endpoint with tool-call support, decoded into
// tagged next-actions for the investigation loop.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Completion is the contract the engine depends on. NextAction drives the
// tool-use loop; Generate serves paraphrase and critic calls.
type Completion interface {
	NextAction(ctx context.Context, req *ActionRequest) (*Action, error)
	Generate(ctx context.Context, req *GenerateRequest) (string, Usage, error)
}

// Client talks to an OpenAI-compatible proxy (LiteLLM or similar).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Ensure Client implements Completion.
var _ Completion = (*Client)(nil)

// NewClient creates a new completion client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NextAction requests the model's next move given the conversation and
// tool list, and decodes it into a tagged Action.
func (c *Client) NextAction(ctx context.Context, req *ActionRequest) (*Action, error) {
	messages := req.Messages
	if req.System != "" {
		messages = append([]ChatMessage{{Role: "system", Content: req.System}}, messages...)
	}

	resp, err := c.createChatCompletion(ctx, &ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Tools:    req.Tools,
		Seed:     req.Seed,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil, fmt.Errorf("completion returned no choices")
	}

	msg := resp.Choices[0].Message
	action := &Action{
		Reasoning: strings.TrimSpace(msg.Content),
		Assistant: *msg,
	}
	if resp.Usage != nil {
		action.Usage = *resp.Usage
	}

	if len(msg.ToolCalls) == 0 {
		action.Text = msg.Content
		return action, nil
	}

	// The terminal tool ends the run wherever it appears, even alongside
	// other calls in the same response.
	for _, call := range msg.ToolCalls {
		if call.Function.Name == TerminalToolName {
			action.Final = toolArgs(call)
			return action, nil
		}
	}

	// One dispatch per turn. The assistant message re-enters the
	// conversation, so it must carry only the call that will get a tool
	// reply; extra parallel calls are dropped and the model re-requests
	// them after seeing the first result.
	call := msg.ToolCalls[0]
	action.Assistant.ToolCalls = msg.ToolCalls[:1]
	action.Tool = &ToolRequest{
		ID:   call.ID,
		Name: call.Function.Name,
		Args: toolArgs(call),
	}
	return action, nil
}

func toolArgs(call ToolCall) json.RawMessage {
	if call.Function.Arguments == "" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(call.Function.Arguments)
}

// Generate sends a plain completion request with no tools and returns the
// assistant text.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (string, Usage, error) {
	var messages []ChatMessage
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Prompt})

	chatReq := &ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Seed:     req.Seed,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = &req.MaxTokens
	}

	resp, err := c.createChatCompletion(ctx, chatReq)
	if err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", Usage{}, fmt.Errorf("completion returned no choices")
	}
	usage := Usage{}
	if resp.Usage != nil {
		usage = *resp.Usage
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func (c *Client) createChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return nil, fmt.Errorf("LLM API error [%d]: %s (type: %s)", resp.StatusCode, errResp.Error.Message, errResp.Error.Type)
		}
		return nil, fmt.Errorf("LLM API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
