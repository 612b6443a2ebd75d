package invoke

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes markdown code-fence markers from model output. Models
// frequently wrap JSON in ```json fences despite being asked for a bare
// object, so the literal markers are dropped wherever they appear.
func StripFences(content string) string {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}

// parseJSON parses the cleaned model text into normalized JSON, with a
// fallback pass that extracts the outermost object or array from surrounding
// commentary.
func parseJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty model output")
	}

	candidates := []string{content}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		normalized, err := json.Marshal(parsed)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize model output: %w", err)
		}
		return normalized, nil
	}

	return nil, fmt.Errorf("no JSON found in model output")
}

// extractJSONCandidate returns the span from the first opening brace or
// bracket to the matching last closing one.
func extractJSONCandidate(content string) string {
	objectStart := strings.Index(content, "{")
	arrayStart := strings.Index(content, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && (arrayStart < 0 || objectStart < arrayStart):
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(content, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
