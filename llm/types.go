package llm

import "encoding/json"

// TerminalToolName is the one reserved tool name whose invocation carries
// the final structured verdict. It is appended to the tool list shown to
// the model but is never registered with any tool executor; the client
// recognizes it at decode time and tags the action as terminal.
const TerminalToolName = "submit_resolution"

// ChatMessage represents a chat message.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Tool represents a tool definition.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction represents a function definition.
type ToolFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

// ToolCall represents a tool call from the assistant.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction represents the function in a tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionRequest represents the OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Seed        *int          `json:"seed,omitempty"`
	Tools       []Tool        `json:"tools,omitempty"`
	ToolChoice  interface{}   `json:"tool_choice,omitempty"`
}

// ChatCompletionResponse represents the OpenAI-compatible chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError represents the error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ToolRequest is a decoded request to execute one declared tool.
type ToolRequest struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Action is the model's next move, decoded as a tagged variant: exactly
// one of Tool, Final, or Text is set. Final carries the raw terminal
// payload; it is never routed through tool dispatch.
type Action struct {
	Tool  *ToolRequest
	Final json.RawMessage
	Text  string

	// Reasoning is any assistant prose accompanying the action.
	Reasoning string
	// Assistant is the full assistant message, to be appended to the
	// conversation before the tool result.
	Assistant ChatMessage
	Usage     Usage
}

// ActionRequest asks for the next action in a tool-use conversation.
type ActionRequest struct {
	Model    string
	System   string
	Messages []ChatMessage
	Tools    []Tool
	Seed     *int
}

// GenerateRequest asks for a plain completion with no tool use.
type GenerateRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
	Seed      *int
}
