package llm

import (
	"context"
	"fmt"
	"strings"
)

// Registry holds one adapter per supported vendor. Built once at
// process start; an unknown vendor is a configuration error, not a
// runtime condition.
type Registry struct {
	clients map[string]Client
	order   []string
}

func NewRegistry(secrets SecretSource) *Registry {
	r := &Registry{clients: make(map[string]Client)}
	for _, c := range []Client{
		NewOpenAIClient(secrets),
		NewAnthropicClient(secrets),
		NewGeminiClient(secrets),
	} {
		r.clients[c.Name()] = c
		r.order = append(r.order, c.Name())
	}
	return r
}

func (r *Registry) Get(vendor string) (Client, error) {
	c, ok := r.clients[vendor]
	if !ok {
		return nil, fmt.Errorf("unknown vendor: %s", vendor)
	}
	return c, nil
}

// Infer maps a model name to its vendor by prefix convention and
// defaults to OpenAI when no pattern matches or no model is given.
func Infer(model string) string {
	switch {
	case model == "":
		return VendorOpenAI
	case strings.HasPrefix(model, "claude"):
		return VendorAnthropic
	case strings.HasPrefix(model, "gemini"):
		return VendorGemini
	default:
		return VendorOpenAI
	}
}

// ClientInfo reports one vendor's identity, availability, and catalog.
type ClientInfo struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Available   bool        `json:"available"`
	Models      []ModelInfo `json:"models"`
}

func (r *Registry) All(ctx context.Context) []ClientInfo {
	infos := make([]ClientInfo, 0, len(r.order))
	for _, name := range r.order {
		c := r.clients[name]
		infos = append(infos, ClientInfo{
			Name:        c.Name(),
			DisplayName: c.DisplayName(),
			Available:   c.IsAvailable(ctx),
			Models:      c.Models(),
		})
	}
	return infos
}

func (r *Registry) Available(ctx context.Context) []ClientInfo {
	var infos []ClientInfo
	for _, info := range r.All(ctx) {
		if info.Available {
			infos = append(infos, info)
		}
	}
	return infos
}
