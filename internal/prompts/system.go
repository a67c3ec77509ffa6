package prompts

import (
	"fmt"
	"time"
)

// systemTemplate is the orchestration system prompt. Format verbs, in
// order: human-readable time, machine-parsable time, summary, recent
// conversation JSON, tool catalog JSON.
//
// The machine-parsable rendering is what the model copies into tool
// parameters (remind_at); the readable one is display-only and never
// parsed back.
const systemTemplate = `You are a concise AI productivity assistant called Quill.
Current time: %s (reminder format: %s)

Summary: %s

Recent conversation:
%s

Tools:
%s

Respond ONLY with valid JSON:
Tool call: {"action":"tool","tool_name":"...","params":{}}
Chat reply: {"action":"chat","response":"..."}

RULES:
- Never claim to do something without calling the tool first.
- If you need an ID (complete/delete/update), call list_todos/get_notes/list_reminders first, then immediately act — no chat in between.
- For multiple items, use bulk_add_todos.
- For ambiguous requests, ask for clarification.
- Always use tools — never answer from memory when a tool exists.
- remind_at format: YYYY-MM-DD HH:MM

STYLE: Be concise. "Done — marked complete." not "Todo with ID 5 has been marked as complete."
`

// SystemPrompt builds the orchestration system prompt. historyJSON and
// toolsJSON are pre-serialized by the caller; summary may be empty and
// is rendered as "None".
func SystemPrompt(now time.Time, summary, historyJSON, toolsJSON string) string {
	if summary == "" {
		summary = "None"
	}
	return fmt.Sprintf(systemTemplate,
		now.Format("Monday, January 02 2006 at 03:04 PM"),
		now.Format("2006-01-02 15:04"),
		summary,
		historyJSON,
		toolsJSON,
	)
}

// toolResultTemplate is appended to the accumulated prompt after each
// tool dispatch. Format verbs: tool name, JSON-encoded result.
const toolResultTemplate = `
Tool: %s
Result: %s

If this was a list result (list_todos, get_notes, list_reminders) and the user asked to complete/delete/update an item, extract the correct ID from the result above and IMMEDIATELY call the appropriate action tool next. Do not respond with chat yet.
If the task is fully complete, respond with a chat action summarizing what was done.
`

// ToolResult builds the transcript fragment folded back into the prompt
// after a tool execution, including the steering instruction that keeps
// the model calling tools until the request is satisfied.
func ToolResult(toolName, resultJSON string) string {
	return fmt.Sprintf(toolResultTemplate, toolName, resultJSON)
}
