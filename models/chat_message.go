package models

// ChatRole discriminates the two message variants in a chat session.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry in the session's chat history. Content is mutable
// only for the trailing assistant message while a stream is active.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
