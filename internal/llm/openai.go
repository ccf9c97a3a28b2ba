package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var openaiModels = []ModelInfo{
	{ID: "gpt-5.2", Name: "GPT 5.2", ContextWindow: 400000, MaxOutput: 128000},
	{ID: "gpt-4o", Name: "GPT 4o", ContextWindow: 128000, MaxOutput: 16384},
}

type OpenAIClient struct {
	secrets SecretSource
}

func NewOpenAIClient(secrets SecretSource) *OpenAIClient {
	return &OpenAIClient{secrets: secrets}
}

func (c *OpenAIClient) Name() string        { return VendorOpenAI }
func (c *OpenAIClient) DisplayName() string { return "OpenAI" }
func (c *OpenAIClient) Models() []ModelInfo { return openaiModels }

func (c *OpenAIClient) IsAvailable(ctx context.Context) bool {
	key, err := c.secrets.SecretForVendor(ctx, VendorOpenAI)
	return err == nil && key != ""
}

func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userInput string, cfg CompletionConfig) (*Response, error) {
	key, err := c.secrets.SecretForVendor(ctx, VendorOpenAI)
	if err != nil {
		return nil, &ClientError{Vendor: VendorOpenAI, Err: err}
	}
	if key == "" {
		return nil, &ClientError{Vendor: VendorOpenAI, Err: errors.New("API key not configured")}
	}
	client := openai.NewClient(key)

	finalSystemPrompt := systemPrompt
	responseFormat := &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeText}
	if cfg.jsonMode() {
		responseFormat.Type = openai.ChatCompletionResponseFormatTypeJSONObject
		if !strings.Contains(strings.ToLower(systemPrompt), "json") {
			finalSystemPrompt = systemPrompt + "\n\nYou must respond with valid JSON."
		}
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          cfg.Model,
		Temperature:    float32(cfg.Temperature),
		MaxTokens:      cfg.MaxTokens,
		ResponseFormat: responseFormat,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: finalSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userInput},
		},
	})
	if err != nil {
		return nil, &ClientError{Vendor: VendorOpenAI, Err: err}
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &Response{
		Content: content,
		TokenUsage: TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}, nil
}
