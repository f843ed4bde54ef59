// Package agent implements the conversational registration gateway: a
// single-turn dispatcher that lets a planner pick tools from a fixed
// registry, calling each at most once, before it answers.
package agent

const (
	MessageHuman = "human"
	MessageAI    = "ai"

	// NoResponse is returned when the planner produced no text.
	NoResponse = "No response generated."
)

// Message is one entry of the caller-held conversation.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type Request struct {
	Input       string    `json:"input"`
	ChatHistory []Message `json:"chat_history"`
}

type Response struct {
	Result string   `json:"result"`
	Tools  []string `json:"tools"`
}

// ErrorResponse is the envelope returned when a turn fails.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// trimHistory keeps the last max messages. max <= 0 keeps nothing.
func trimHistory(history []Message, max int) []Message {
	if max <= 0 {
		return nil
	}
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
