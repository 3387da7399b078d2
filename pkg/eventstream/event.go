// Package eventstream defines the transport-neutral events reqvibe emits
// when conversation state is persisted, plus the Publisher interface the
// backends implement.
package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSessionPersisted is emitted after a user's sessions are
	// written to disk.
	EventTypeSessionPersisted = "reqvibe.sessions.persisted"
)

// SessionPersistedEvent is emitted once per successful (non-skipped)
// conversation store write.
type SessionPersistedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// Username identifies whose session file was written.
	Username string `json:"username"`

	// SessionCount is the number of records in the written payload.
	SessionCount int `json:"session_count"`

	// PayloadBytes is the size of the written JSON payload.
	PayloadBytes int `json:"payload_bytes"`

	// EvictedSessionIDs lists records dropped by the count limit during
	// this save, newest first.
	EvictedSessionIDs []string `json:"evicted_session_ids,omitempty"`

	// TruncatedSessionIDs lists records whose message lists were cut to
	// satisfy the byte budget.
	TruncatedSessionIDs []string `json:"truncated_session_ids,omitempty"`
}
