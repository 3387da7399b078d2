// Package session holds the session record type and the registry that
// orchestrates switching between short-term memory and the conversation
// store.
package session

import (
	"time"

	"github.com/reqvibe/reqvibe/pkg/chat"
)

// Record is one saved conversation session. IDs are unique across all
// records for a user; CreatedAt orders records for eviction.
type Record struct {
	ID        string         `json:"id"`
	Messages  []chat.Message `json:"messages"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	Model     string         `json:"model"`
}

// Clone returns a deep-enough copy of the record: the message slice is
// copied so the caller can truncate it without touching the original.
func (r Record) Clone() Record {
	out := r
	out.Messages = chat.CloneMessages(r.Messages)
	return out
}
