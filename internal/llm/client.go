package llm

import (
	"context"
	"fmt"
)

const (
	VendorOpenAI    = "openai"
	VendorAnthropic = "anthropic"
	VendorGemini    = "gemini"
)

// Client abstracts one AI vendor's completion call. Adapters resolve
// their secret per call, so operator-stored keys take effect without a
// restart.
type Client interface {
	Name() string
	DisplayName() string
	Models() []ModelInfo
	IsAvailable(ctx context.Context) bool
	Complete(ctx context.Context, systemPrompt, userInput string, cfg CompletionConfig) (*Response, error)
}

// SecretSource supplies the vendor secret, or "" when none is
// configured anywhere.
type SecretSource interface {
	SecretForVendor(ctx context.Context, vendor string) (string, error)
}

type CompletionConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	ResponseFormat string // "json" or "text"
}

type Response struct {
	Content    string
	TokenUsage TokenUsage
}

// TokenUsage is vendor-reported; fields a vendor omits stay 0.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// ModelInfo is a static catalog entry.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextWindow int    `json:"context_window"`
	MaxOutput     int    `json:"max_output"`
}

// ClientError classifies any transport or vendor-side failure,
// carrying the vendor name alongside the underlying cause.
type ClientError struct {
	Vendor string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s API error: %v", e.Vendor, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

func (c CompletionConfig) jsonMode() bool {
	return c.ResponseFormat == "json"
}
