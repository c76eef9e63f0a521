package models

// Session history roles.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolResult = "toolResult"
)

// Content item types for session history messages.
const (
	ContentText       = "text"
	ContentThinking   = "thinking"
	ContentToolUse    = "tool_use"
	ContentToolResult = "tool_result"
)

// ContentItem is one element of a session history message. Type selects
// which of the remaining fields are meaningful.
type ContentItem struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Name    string `json:"name,omitempty"`
	Success *bool  `json:"success,omitempty"`
}

// SessionHistoryMessage is one turn of a remote agent session. The session
// itself is owned and versioned by the remote agent; this layer only relays.
type SessionHistoryMessage struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	Content   []ContentItem `json:"content"`
	Timestamp int64         `json:"timestamp"`
}
