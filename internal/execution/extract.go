package execution

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON recovers a structured value from free-form model text.
// It tries, in order: the whole text, the inner text of a fenced code
// block, and the first balanced object- or array-shaped substring.
// Each candidate gets a strict parse and then a repair attempt. A miss
// at every step returns nil; absent output is not an error.
func ExtractJSON(content string) json.RawMessage {
	candidates := []string{content}

	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	if span := balancedSpan(content); span != "" {
		candidates = append(candidates, span)
	}

	for _, candidate := range candidates {
		if raw := parseStructured(candidate); raw != nil {
			return raw
		}
	}
	return nil
}

// parseStructured accepts only object- or array-shaped values. When
// the strict parse fails, a jsonrepair pass gets one chance; repair
// failures are silent.
func parseStructured(candidate string) json.RawMessage {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil
	}
	if isStructured(candidate) && json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate)
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil
	}
	repaired = strings.TrimSpace(repaired)
	if isStructured(repaired) && json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired)
	}
	return nil
}

func isStructured(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// balancedSpan returns the first top-level {...} or [...] substring
// with matched brackets, skipping bracket characters inside JSON
// strings.
func balancedSpan(content string) string {
	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ""
	}

	open := content[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
