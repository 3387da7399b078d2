package memory

// Requirement is a single extracted requirement with its Volere template
// fields. Extraction happens outside this package; memory only stores
// requirements in insertion order.
//
// Duplicate IDs are permitted at this layer. Deduplication, when wanted,
// belongs to the long-term store that indexes by ID.
type Requirement struct {
	ID     string            `json:"id"`
	Text   string            `json:"text"`
	Volere map[string]string `json:"volere,omitempty"`
}
