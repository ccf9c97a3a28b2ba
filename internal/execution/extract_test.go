package execution

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONWholeText(t *testing.T) {
	got := ExtractJSON(`{"sentiment": "positive", "score": 0.92}`)
	require.NotNil(t, got)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(got, &parsed))
	assert.Equal(t, "positive", parsed["sentiment"])
}

func TestExtractJSONFencedBlock(t *testing.T) {
	content := "Here is the analysis:\n```json\n{\"a\": 1}\n```\nLet me know if you need more."
	got := ExtractJSON(content)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"a": 1}`, string(got))
}

func TestExtractJSONFencedBlockWithoutTag(t *testing.T) {
	got := ExtractJSON("```\n[1, 2, 3]\n```")
	require.NotNil(t, got)
	assert.JSONEq(t, `[1, 2, 3]`, string(got))
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	content := `Sure! The result is {"label": "spam", "confidence": 0.87} based on the input.`
	got := ExtractJSON(content)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"label": "spam", "confidence": 0.87}`, string(got))
}

func TestExtractJSONArrayInProse(t *testing.T) {
	got := ExtractJSON(`The tags are ["a", "b"] as requested.`)
	require.NotNil(t, got)
	assert.JSONEq(t, `["a", "b"]`, string(got))
}

func TestExtractJSONNestedBraces(t *testing.T) {
	content := `Result: {"outer": {"inner": [1, {"deep": true}]}} done.`
	got := ExtractJSON(content)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"outer": {"inner": [1, {"deep": true}]}}`, string(got))
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	content := `{"text": "a } inside", "n": 1}`
	got := ExtractJSON(content)
	require.NotNil(t, got)
	assert.JSONEq(t, content, string(got))
}

func TestExtractJSONRepairsTrailingComma(t *testing.T) {
	got := ExtractJSON(`{"a": 1, "b": 2,}`)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"a": 1, "b": 2}`, string(got))
}

func TestExtractJSONNoStructure(t *testing.T) {
	assert.Nil(t, ExtractJSON("no structure here"))
	assert.Nil(t, ExtractJSON(""))
}

func TestExtractJSONScalarRejected(t *testing.T) {
	// Bare scalars parse as JSON but are not structured output.
	assert.Nil(t, ExtractJSON("42"))
	assert.Nil(t, ExtractJSON(`"just a string"`))
}

func TestExtractJSONUnclosedBrace(t *testing.T) {
	// The balanced scan misses, then repair closes the object.
	got := ExtractJSON(`{"a": 1`)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"a": 1}`, string(got))
}
