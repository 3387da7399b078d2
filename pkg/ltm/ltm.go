// Package ltm is the long-term requirement memory: requirements
// extracted from conversations, persisted across sessions and projects,
// searchable by keyword or by embedding similarity.
//
// Unlike the short-term memory this layer deduplicates by requirement
// ID: saving an existing ID updates the stored record.
package ltm

import "time"

// Record is one persisted requirement.
type Record struct {
	// ID is the requirement identifier (e.g. "REQ-012"). Unique per
	// store; saves upsert by ID.
	ID string `json:"id"`

	// Text is the requirement statement.
	Text string `json:"text"`

	// Project groups requirements by the project they belong to.
	Project string `json:"project,omitempty"`

	// Volere carries the structured Volere template fields.
	Volere map[string]string `json:"volere,omitempty"`

	// Embedding is the vector representation of Text, when available.
	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Result is a search hit with its similarity score (higher = closer).
// Keyword searches report a score of zero.
type Result struct {
	Record
	Score float32 `json:"score"`
}

// ErrNotFound is returned when a requirement doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "requirement not found"
	}

	return "requirement not found: " + e.ID
}
