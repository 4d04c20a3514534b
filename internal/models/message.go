package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message captures one entry of a user's conversation history.
type Message struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextMessage is one role-tagged entry of a ContextBundle.
type ContextMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ContextBundle is the ordered message sequence sent in one model call.
type ContextBundle []ContextMessage

// Clone returns a copy that can be mutated without touching the original.
func (b ContextBundle) Clone() ContextBundle {
	if b == nil {
		return nil
	}
	out := make(ContextBundle, len(b))
	copy(out, b)
	return out
}

// Contents returns the plain text bodies of a history slice.
func Contents(history []Message) []string {
	out := make([]string, 0, len(history))
	for _, msg := range history {
		out = append(out, msg.Content)
	}
	return out
}
