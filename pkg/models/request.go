package models

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is an OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse is an OpenAI-compatible chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Content returns the first choice's message text, or "" if there is none.
func (r *ChatCompletionResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// TotalTokens returns usage.total_tokens, or 0 when usage was not reported.
func (r *ChatCompletionResponse) TotalTokens() int {
	if r == nil || r.Usage == nil {
		return 0
	}
	return r.Usage.TotalTokens
}

// TokenUsage returns the reported usage, or a zero Usage when the response
// or its usage is missing.
func (r *ChatCompletionResponse) TokenUsage() Usage {
	if r == nil || r.Usage == nil {
		return Usage{}
	}
	return *r.Usage
}
