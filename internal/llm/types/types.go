package types

import "fmt"

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`    // user, assistant, system
	Content string `json:"content"` // message text
}

// CompletionRequest represents a request to complete text
type CompletionRequest struct {
	Messages    []Message `json:"messages"`              // conversation history
	MaxTokens   int       `json:"max_tokens,omitempty"`  // output cap (0 = provider default)
	Temperature float64   `json:"temperature,omitempty"` // sampling temperature
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	Content string     `json:"content"` // generated text
	Usage   TokenUsage `json:"usage"`   // token usage
}

// TokenUsage tracks token usage per request
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`     // input tokens
	CompletionTokens int `json:"completion_tokens"` // output tokens
	TotalTokens      int `json:"total_tokens"`      // total tokens
}

// ServiceError is returned when a completion provider fails. The analysis
// engine treats any provider error as fatal for the current run, so callers
// mainly use this type to surface the provider and HTTP status in logs.
type ServiceError struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code"` // 0 when the failure was not an HTTP response
	Message    string `json:"message"`
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s completion failed (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s completion failed: %s", e.Provider, e.Message)
}
