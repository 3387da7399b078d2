package ltm

import "context"

// Driver defines the interface for persisting and searching requirements
// in a storage backend.
type Driver interface {
	// Save stores a requirement, replacing any record with the same ID.
	Save(ctx context.Context, rec Record) error

	// Get retrieves a requirement by ID. Returns ErrNotFound when the
	// ID is unknown.
	Get(ctx context.Context, id string) (*Record, error)

	// Search returns up to limit requirements whose text or ID matches
	// the query, case-insensitively, newest first.
	Search(ctx context.Context, query string, limit int) ([]Result, error)

	// SearchByVector returns the topK requirements most similar to the
	// given embedding, best match first. Records without embeddings are
	// skipped.
	SearchByVector(ctx context.Context, embedding []float32, topK int) ([]Result, error)

	// All returns every stored requirement, newest first.
	All(ctx context.Context) ([]Record, error)

	// Delete removes a requirement by ID. Deleting an unknown ID is not
	// an error.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the driver.
	Close() error
}
