package llm

import (
	"encoding/json"
	"strings"

	"github.com/trialscout/platform/pkg/common/apperrors"
)

// parseJSONPayload attempts a direct parse, then falls back to the first
// fenced JSON block. LLMs wrap JSON in markdown fences often enough that
// the fallback is part of the contract.
func parseJSONPayload(raw string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(raw)

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		return payload, nil
	}

	fenced, ok := firstFencedBlock(trimmed)
	if !ok {
		return nil, apperrors.New(apperrors.KindParse, "response is not JSON and contains no fenced block")
	}
	if err := json.Unmarshal([]byte(fenced), &payload); err != nil {
		return nil, apperrors.Wrap(apperrors.KindParse, "fenced block is not valid JSON", err)
	}
	return payload, nil
}

// firstFencedBlock returns the contents of the first ``` fence, with an
// optional language tag on the opening line stripped.
func firstFencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	if newline := strings.Index(rest, "\n"); newline >= 0 {
		// Drop a language tag like "json"
		firstLine := strings.TrimSpace(rest[:newline])
		if firstLine != "" && !strings.HasPrefix(firstLine, "{") && !strings.HasPrefix(firstLine, "[") {
			rest = rest[newline+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
