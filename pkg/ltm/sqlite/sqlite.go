// Package sqlite provides a SQLite-backed ltm driver. Keyword search
// uses LIKE; vector search loads embeddings and ranks in process, which
// is fine at the requirement counts a single user produces. For large
// corpora use the sqlitevec driver instead.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reqvibe/reqvibe/pkg/ltm"
)

// Driver implements ltm.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a SQLite-backed requirement store. The dbPath can be
// a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS requirements (
			id         TEXT PRIMARY KEY,
			text       TEXT NOT NULL,
			project    TEXT NOT NULL DEFAULT '',
			volere     TEXT NOT NULL DEFAULT '{}',
			embedding  BLOB,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating requirements table: %w", err)
	}

	return &Driver{db: db}, nil
}

// Save upserts a requirement by ID.
func (d *Driver) Save(ctx context.Context, rec ltm.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("requirement ID is required")
	}

	volere, err := json.Marshal(rec.Volere)
	if err != nil {
		return fmt.Errorf("marshaling volere fields: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO requirements (id, text, project, volere, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			project = excluded.project,
			volere = excluded.volere,
			embedding = excluded.embedding
	`, rec.ID, rec.Text, rec.Project, string(volere), serializeEmbedding(rec.Embedding), createdAt)
	if err != nil {
		return fmt.Errorf("saving requirement %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a requirement by ID.
func (d *Driver) Get(ctx context.Context, id string) (*ltm.Record, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, text, project, volere, embedding, created_at
		FROM requirements WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ltm.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting requirement %s: %w", id, err)
	}
	return rec, nil
}

// Search matches query against ID and text with LIKE, newest first.
func (d *Driver) Search(ctx context.Context, query string, limit int) ([]ltm.Result, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, text, project, volere, embedding, created_at
		FROM requirements
		WHERE text LIKE ? COLLATE NOCASE OR id LIKE ? COLLATE NOCASE
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching requirements: %w", err)
	}
	defer rows.Close()

	var out []ltm.Result
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning requirement: %w", err)
		}
		out = append(out, ltm.Result{Record: *rec})
	}
	return out, rows.Err()
}

// SearchByVector loads all embedded records and ranks them by cosine
// similarity in process.
func (d *Driver) SearchByVector(ctx context.Context, embedding []float32, topK int) ([]ltm.Result, error) {
	if topK <= 0 {
		topK = 10
	}

	records, err := d.All(ctx)
	if err != nil {
		return nil, err
	}

	var out []ltm.Result
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			continue
		}
		out = append(out, ltm.Result{
			Record: rec,
			Score:  ltm.CosineSimilarity(embedding, rec.Embedding),
		})
	}

	// Insertion sort by score keeps this dependency-free; result sets
	// are small.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}

	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// All returns every stored requirement, newest first.
func (d *Driver) All(ctx context.Context) ([]ltm.Record, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, text, project, volere, embedding, created_at
		FROM requirements
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing requirements: %w", err)
	}
	defer rows.Close()

	var out []ltm.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning requirement: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Delete removes a requirement by ID.
func (d *Driver) Delete(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM requirements WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting requirement %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*ltm.Record, error) {
	var (
		rec       ltm.Record
		volere    string
		embedding []byte
	)
	if err := s.Scan(&rec.ID, &rec.Text, &rec.Project, &volere, &embedding, &rec.CreatedAt); err != nil {
		return nil, err
	}

	if volere != "" && volere != "null" {
		if err := json.Unmarshal([]byte(volere), &rec.Volere); err != nil {
			return nil, fmt.Errorf("unmarshaling volere fields: %w", err)
		}
	}
	rec.Embedding = deserializeEmbedding(embedding)
	return &rec, nil
}
