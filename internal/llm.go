package internal

import "context"

// Provider completes a prompt with free text. Callers decode the text with
// the tolerant decoder since models wrap JSON in prose and fences.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CaptionDraft is the object the caption prompt asks the model for.
type CaptionDraft struct {
	Caption      string   `json:"caption"`
	Metaphor     string   `json:"metaphor,omitempty"`
	Structure    string   `json:"structure,omitempty"`
	ImageKeyword string   `json:"imageKeyword,omitempty"`
	Hashtags     []string `json:"hashtags,omitempty"`
}

type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
	StatusNoNews  Status = "NO_NEWS"
)

// StatusAnalysis is the analyzer's verdict on a batch of headlines.
type StatusAnalysis struct {
	Status       Status  `json:"status"`
	Confidence   float64 `json:"confidence"`
	ShouldTweet  bool    `json:"shouldTweet"`
	Message      string  `json:"message"`
	ImageKeyword string  `json:"imageKeyword"`
}
