// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// \x60 is a backtick; raw strings cannot hold one.

	// fencedRegex extracts the body of a markdown code fence with an optional language tag.
	fencedRegex = regexp.MustCompile("(?s)^\x60{3}[a-zA-Z]*\\s*(.*?)\\s*\x60{3}$")
)

// StripFences removes markdown code fences and a bare leading "json" tag
// from a model response, leaving the payload trimmed.
func StripFences(response string) string {
	s := strings.TrimSpace(response)
	if m := fencedRegex.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	} else {
		s = strings.Trim(s, "`")
	}
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "json"); ok {
		s = strings.TrimSpace(rest)
	}
	return s
}

// ParseJSONResponse attempts to parse an LLM response string into a target Go type.
// It tolerates fenced output and JSON embedded in surrounding prose.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := StripFences(response)

	if !strings.HasPrefix(payload, "{") && !strings.HasPrefix(payload, "[") {
		payload = extractStructure(payload)
	}

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(payload, 500))
	}
	return &result, nil
}

// extractStructure finds the outermost object, or failing that array, inside conversational text.
func extractStructure(s string) string {
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		first := strings.Index(s, pair[0])
		last := strings.LastIndex(s, pair[1])
		if first != -1 && last > first {
			return s[first : last+1]
		}
	}
	return s
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
