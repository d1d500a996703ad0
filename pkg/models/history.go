package models

import "time"

// Outcome classifies how a single request cycle ended.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomePromptFailed     Outcome = "prompt_failed"
	OutcomeCompletionFailed Outcome = "completion_failed"
)

// RequestRecord is one request cycle as stored in the history database.
type RequestRecord struct {
	ID               string    `json:"id"`
	CycleID          string    `json:"cycle_id"`
	Seq              int       `json:"seq"`
	Model            string    `json:"model"`
	Prompt           string    `json:"prompt,omitempty"`
	Outcome          Outcome   `json:"outcome"`
	StatusCode       int       `json:"status_code,omitempty"`
	Error            string    `json:"error,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// CycleRecord is one day-cycle: from Initialize to the scheduled resume.
type CycleRecord struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	RequestLimit int       `json:"request_limit"`
	Requests     int       `json:"requests"`
	SuspendedAt  time.Time `json:"suspended_at,omitempty"`
	ResumeAt     time.Time `json:"resume_at,omitempty"`
}

// DaySummary aggregates the request history of one calendar day.
type DaySummary struct {
	Day              string `json:"day"`
	Requests         int    `json:"requests"`
	Succeeded        int    `json:"succeeded"`
	PromptFailures   int    `json:"prompt_failures"`
	CompletionErrors int    `json:"completion_errors"`
	TotalTokens      int64  `json:"total_tokens"`
}
