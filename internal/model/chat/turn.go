package chat

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// Roles recorded in a transcript. Only user and assistant turns are produced by the exchange.
const (
	RoleUser      = schema.User
	RoleAssistant = schema.Assistant
)

// Turn is one exchanged message.
type Turn struct {
	ID        string          `json:"id"`
	Role      schema.RoleType `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
}

// Message converts the turn into an eino message.
func (t Turn) Message() *schema.Message {
	if t.Role == RoleAssistant {
		return schema.AssistantMessage(t.Content, nil)
	}
	return schema.UserMessage(t.Content)
}
