package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"
)

// DecodeJSON decodes a model answer into v. It tolerates markdown code
// fences, prose around the object, comments and trailing commas.
func DecodeJSON(text string, v any) error {
	body := extractObject(stripFences(text))
	if body == "" {
		return fmt.Errorf("llm: no JSON object in response %q", truncate(text, 80))
	}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(body)), v); err != nil {
		return fmt.Errorf("llm: decode response: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractObject returns the first balanced {...} in s, ignoring braces
// inside string literals.
func extractObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
