package models

// GeminiPart is a single text part of Gemini content.
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiContent is a turn in a Gemini conversation.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiGenerationConfig tunes a generateContent call.
type GeminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

// GeminiRequest is the body of a generateContent call.
type GeminiRequest struct {
	Contents         []GeminiContent         `json:"contents"`
	GenerationConfig *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiCandidate is one generated answer.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// GeminiResponse is the body returned by generateContent.
type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
}

// Text returns the first part of the first candidate, or "".
func (r *GeminiResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}
