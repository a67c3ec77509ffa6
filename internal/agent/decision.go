package agent

import (
	"encoding/json"
	"strings"
)

// Decision is the structured output extracted from generated text.
// Exactly one of the two shapes is meaningful: Action "tool" carries
// ToolName and Params; Action "chat" carries Response.
type Decision struct {
	Action   string         `json:"action"`
	ToolName string         `json:"tool_name,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Response string         `json:"response,omitempty"`
}

// ActionTool and ActionChat are the two recognized decision actions.
const (
	ActionTool = "tool"
	ActionChat = "chat"
)

// ExtractDecision recovers a structured decision from raw model text.
// The text is expected to contain a JSON object but may be wrapped in
// code fences or surrounded by prose. Extraction is two-stage:
//
//  1. strip fence markers and parse the whole trimmed text;
//  2. on failure, parse the substring from the first '{' to the
//     last '}'.
//
// Returns nil when neither stage yields a recognizable decision.
// Callers treat nil as an implicit direct reply, not an error.
func ExtractDecision(text string) *Decision {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	if d := parseDecision(cleaned); d != nil {
		return d
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return nil
	}
	return parseDecision(cleaned[start : end+1])
}

// parseDecision unmarshals candidate JSON and validates the action tag.
func parseDecision(s string) *Decision {
	var d Decision
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil
	}
	if d.Action != ActionTool && d.Action != ActionChat {
		return nil
	}
	return &d
}
