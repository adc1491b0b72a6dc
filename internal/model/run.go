package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records a single transcript analysis: what was analyzed, with which
// questionnaire and model, and what came out of it.
type Run struct {
	ID                  string        `json:"id"`
	TranscriptSource    string        `json:"transcript_source"`
	TranscriptSHA256    string        `json:"transcript_sha256"`
	QuestionnaireSource string        `json:"questionnaire_source"`
	Model               string        `json:"model"`
	Status              RunStatus     `json:"status"`
	Error               string        `json:"error,omitempty"`
	Answers             []AnswerEntry `json:"answers,omitempty"`
	Usage               TokenUsage    `json:"usage"`
	DurationMS          int64         `json:"duration_ms"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// TokenUsage tracks token consumption for a run.
type TokenUsage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	Cost                float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.CacheCreationTokens += other.CacheCreationTokens
	t.CacheReadTokens += other.CacheReadTokens
	t.Cost += other.Cost
}
