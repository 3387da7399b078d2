// Package inmemory provides an in-memory ltm driver used for tests and
// as the fallback when no storage backend is configured.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/reqvibe/reqvibe/pkg/ltm"
)

// Driver implements ltm.Driver with a mutex-guarded map.
type Driver struct {
	mu      sync.RWMutex
	records map[string]ltm.Record
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{records: make(map[string]ltm.Record)}
}

// Save stores rec, replacing any record with the same ID.
func (d *Driver) Save(_ context.Context, rec ltm.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[rec.ID] = rec
	return nil
}

// Get retrieves a requirement by ID.
func (d *Driver) Get(_ context.Context, id string) (*ltm.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[id]
	if !ok {
		return nil, ltm.ErrNotFound{ID: id}
	}
	return &rec, nil
}

// Search matches query case-insensitively against ID and text.
func (d *Driver) Search(_ context.Context, query string, limit int) ([]ltm.Result, error) {
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(query)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []ltm.Result
	for _, rec := range d.records {
		if strings.Contains(strings.ToLower(rec.Text), needle) ||
			strings.Contains(strings.ToLower(rec.ID), needle) {
			out = append(out, ltm.Result{Record: rec})
		}
	}

	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchByVector ranks stored records by cosine similarity.
func (d *Driver) SearchByVector(_ context.Context, embedding []float32, topK int) ([]ltm.Result, error) {
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []ltm.Result
	for _, rec := range d.records {
		if len(rec.Embedding) == 0 {
			continue
		}
		out = append(out, ltm.Result{
			Record: rec,
			Score:  ltm.CosineSimilarity(embedding, rec.Embedding),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// All returns every stored requirement, newest first.
func (d *Driver) All(_ context.Context) ([]ltm.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]ltm.Record, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a requirement by ID.
func (d *Driver) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.records, id)
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

func sortNewestFirst(results []ltm.Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}
