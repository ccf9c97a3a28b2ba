package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateAppID(t *testing.T) {
	id := generateAppID("Sentiment Analyzer")
	parts := strings.Split(id, "-")
	assert.Equal(t, "sentim", parts[0])
	assert.Len(t, parts[len(parts)-1], 5)
}

func TestGenerateAppIDStripsSymbols(t *testing.T) {
	id := generateAppID("Über @pp!")
	assert.NotContains(t, id, "@")
	assert.NotContains(t, id, "!")
	assert.Equal(t, strings.ToLower(id), id)
}

func TestGenerateAppIDEmptyName(t *testing.T) {
	id := generateAppID("!!!")
	assert.Len(t, id, 5)
}

func TestGenerateAppIDUnique(t *testing.T) {
	assert.NotEqual(t, generateAppID("same"), generateAppID("same"))
}
