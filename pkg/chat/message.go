// Package chat defines the conversation message types shared across the
// reqvibe system: the short-term memory, the conversation store, the LLM
// client, and the API surface all exchange these.
package chat

import "strings"

// Role identifies the author of a message.
//
// The closed set below covers everything reqvibe writes itself. Persisted
// data from other tools may carry roles outside this set; those pass
// through untouched rather than being rejected, so legacy session files
// keep loading.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Known reports whether r is one of the roles reqvibe itself produces.
func (r Role) Known() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single entry in a conversation. Messages are append-only:
// once added to a history they are never edited in place.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with trimmed content.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:    role,
		Content: strings.TrimSpace(content),
	}
}

// IsSystem reports whether the message carries the system role.
func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}

// CloneMessages returns a shallow copy of msgs so callers can hand out
// histories without exposing internal slices to mutation.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
