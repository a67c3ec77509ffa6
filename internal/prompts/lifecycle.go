package prompts

import "fmt"

// ConversationSummary asks for a rolling summary of the retained
// history. The result replaces any prior summary for the session.
func ConversationSummary(historyJSON string) string {
	return fmt.Sprintf("Summarize this conversation in 3 sentences max:\n%s", historyJSON)
}

// ChatName asks for a short session title from the first user message.
func ChatName(firstMessage string) string {
	return fmt.Sprintf("Generate a short 3-4 word title for a chat that starts with this message. "+
		"Return ONLY the title, no quotes, no punctuation, no explanation.\n\nMessage: %s", firstMessage)
}

// NoteSummary asks for a one-sentence summary of a long note body.
func NoteSummary(body string) string {
	return fmt.Sprintf("Summarize in one sentence:\n\n%s", body)
}

// TextSummary asks for a concise summary of arbitrary text, used by the
// summarize_text tool.
func TextSummary(text string) string {
	return fmt.Sprintf("Summarize this concisely:\n\n%s", text)
}
