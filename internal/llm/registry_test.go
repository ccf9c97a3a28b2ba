package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSecrets map[string]string

func (s staticSecrets) SecretForVendor(ctx context.Context, vendor string) (string, error) {
	return s[vendor], nil
}

func TestInfer(t *testing.T) {
	cases := map[string]string{
		"":                         VendorOpenAI,
		"gpt-4o":                   VendorOpenAI,
		"gpt-5.2":                  VendorOpenAI,
		"claude-sonnet-4-20250514": VendorAnthropic,
		"claude-opus-4-5-20251101": VendorAnthropic,
		"gemini-2.5-flash":         VendorGemini,
		"some-custom-model":        VendorOpenAI,
	}
	for model, want := range cases {
		assert.Equal(t, want, Infer(model), "model %q", model)
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(staticSecrets{})

	for _, vendor := range []string{VendorOpenAI, VendorAnthropic, VendorGemini} {
		c, err := r.Get(vendor)
		require.NoError(t, err)
		assert.Equal(t, vendor, c.Name())
	}

	_, err := r.Get("cohere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vendor")
}

func TestRegistryAvailability(t *testing.T) {
	r := NewRegistry(staticSecrets{VendorOpenAI: "sk-test"})
	ctx := context.Background()

	infos := r.All(ctx)
	require.Len(t, infos, 3)

	available := r.Available(ctx)
	require.Len(t, available, 1)
	assert.Equal(t, VendorOpenAI, available[0].Name)
}

func TestClientErrorUnwrap(t *testing.T) {
	inner := assert.AnError
	err := &ClientError{Vendor: VendorOpenAI, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "openai API error")
}

func TestModelCatalogs(t *testing.T) {
	r := NewRegistry(staticSecrets{})
	for _, info := range r.All(context.Background()) {
		assert.NotEmpty(t, info.Models, "vendor %s", info.Name)
		for _, m := range info.Models {
			assert.NotEmpty(t, m.ID)
			assert.Positive(t, m.ContextWindow)
		}
	}
}
