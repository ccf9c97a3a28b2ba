package llm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

var geminiModels = []ModelInfo{
	{ID: "gemini-3-pro-preview", Name: "Gemini 3 Pro", ContextWindow: 1000000, MaxOutput: 64000},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", ContextWindow: 1048576, MaxOutput: 65536},
}

type GeminiClient struct {
	secrets SecretSource
}

func NewGeminiClient(secrets SecretSource) *GeminiClient {
	return &GeminiClient{secrets: secrets}
}

func (c *GeminiClient) Name() string        { return VendorGemini }
func (c *GeminiClient) DisplayName() string { return "Google Gemini" }
func (c *GeminiClient) Models() []ModelInfo { return geminiModels }

func (c *GeminiClient) IsAvailable(ctx context.Context) bool {
	key, err := c.secrets.SecretForVendor(ctx, VendorGemini)
	return err == nil && key != ""
}

func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userInput string, cfg CompletionConfig) (*Response, error) {
	key, err := c.secrets.SecretForVendor(ctx, VendorGemini)
	if err != nil {
		return nil, &ClientError{Vendor: VendorGemini, Err: err}
	}
	if key == "" {
		return nil, &ClientError{Vendor: VendorGemini, Err: errors.New("API key not configured")}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ClientError{Vendor: VendorGemini, Err: err}
	}

	finalSystemPrompt := systemPrompt
	if cfg.jsonMode() && !strings.Contains(strings.ToLower(systemPrompt), "json") {
		finalSystemPrompt += "\n\nYou must respond with valid JSON only. No additional text or explanation."
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(finalSystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(cfg.Temperature)),
		MaxOutputTokens:   int32(cfg.MaxTokens),
		ResponseMIMEType:  "text/plain",
	}
	if cfg.jsonMode() {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, cfg.Model, genai.Text(userInput), genCfg)
	if err != nil {
		return nil, &ClientError{Vendor: VendorGemini, Err: err}
	}

	usage := TokenUsage{}
	if resp.UsageMetadata != nil {
		usage.Prompt = int(resp.UsageMetadata.PromptTokenCount)
		usage.Completion = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.Total = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &Response{
		Content:    resp.Text(),
		TokenUsage: usage,
	}, nil
}
