package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var anthropicModels = []ModelInfo{
	{ID: "claude-opus-4-5-20251101", Name: "Claude Opus 4.5", ContextWindow: 200000, MaxOutput: 64000},
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextWindow: 200000, MaxOutput: 16000},
}

type AnthropicClient struct {
	secrets SecretSource
}

func NewAnthropicClient(secrets SecretSource) *AnthropicClient {
	return &AnthropicClient{secrets: secrets}
}

func (c *AnthropicClient) Name() string        { return VendorAnthropic }
func (c *AnthropicClient) DisplayName() string { return "Anthropic" }
func (c *AnthropicClient) Models() []ModelInfo { return anthropicModels }

func (c *AnthropicClient) IsAvailable(ctx context.Context) bool {
	key, err := c.secrets.SecretForVendor(ctx, VendorAnthropic)
	return err == nil && key != ""
}

func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userInput string, cfg CompletionConfig) (*Response, error) {
	key, err := c.secrets.SecretForVendor(ctx, VendorAnthropic)
	if err != nil {
		return nil, &ClientError{Vendor: VendorAnthropic, Err: err}
	}
	if key == "" {
		return nil, &ClientError{Vendor: VendorAnthropic, Err: errors.New("API key not configured")}
	}
	client := anthropic.NewClient(option.WithAPIKey(key))

	// No native JSON mode, so the instruction rides on the system prompt.
	finalSystemPrompt := systemPrompt
	if cfg.jsonMode() {
		finalSystemPrompt += "\n\nIMPORTANT: You must respond with valid JSON only. No additional text or explanation."
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(cfg.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(cfg.Temperature),
		System:      []anthropic.TextBlockParam{{Text: finalSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userInput)),
		},
	})
	if err != nil {
		return nil, &ClientError{Vendor: VendorAnthropic, Err: err}
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	inputTokens := int(resp.Usage.InputTokens)
	outputTokens := int(resp.Usage.OutputTokens)

	return &Response{
		Content: content,
		TokenUsage: TokenUsage{
			Prompt:     inputTokens,
			Completion: outputTokens,
			Total:      inputTokens + outputTokens,
		},
	}, nil
}
