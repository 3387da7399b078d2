// Package sqlitevec provides an ltm driver backed by SQLite with the
// sqlite-vec extension for native KNN vector search.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/reqvibe/reqvibe/pkg/ltm"
)

// DefaultDimensions matches the embedding size of common embedding
// models; override with NewDriverWithDimensions when the configured
// model differs.
const DefaultDimensions = 1536

// Driver implements ltm.Driver using SQLite with the sqlite-vec
// extension. Requirements live in a regular table; embeddings live in a
// vec0 virtual table keyed by rowid, joined through a mapping table.
type Driver struct {
	db         *sql.DB
	dimensions int
}

// NewDriver creates a sqlite-vec backed requirement store with the
// default embedding dimensions.
func NewDriver(dbPath string) (*Driver, error) {
	return NewDriverWithDimensions(dbPath, DefaultDimensions)
}

// NewDriverWithDimensions creates a sqlite-vec backed requirement store
// with explicit embedding dimensions.
func NewDriverWithDimensions(dbPath string, dimensions int) (*Driver, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}

	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	d := &Driver{db: db, dimensions: dimensions}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Driver) migrate() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS requirements (
			id         TEXT PRIMARY KEY,
			text       TEXT NOT NULL,
			project    TEXT NOT NULL DEFAULT '',
			volere     TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			vec_rowid  INTEGER
		)
	`)
	if err != nil {
		return fmt.Errorf("creating requirements table: %w", err)
	}

	_, err = d.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_requirements USING vec0(
			embedding float[%d]
		)
	`, d.dimensions))
	if err != nil {
		return fmt.Errorf("creating vec_requirements table: %w", err)
	}
	return nil
}

// Save upserts a requirement by ID. When rec carries an embedding it is
// written to the vec0 table; vec0 does not support UPDATE on existing
// rows, so updates delete and re-insert.
func (d *Driver) Save(ctx context.Context, rec ltm.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("requirement ID is required")
	}
	if len(rec.Embedding) > 0 && len(rec.Embedding) != d.dimensions {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(rec.Embedding), d.dimensions)
	}

	volere, err := json.Marshal(rec.Volere)
	if err != nil {
		return fmt.Errorf("marshaling volere fields: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var prevRowid sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT vec_rowid FROM requirements WHERE id = ?`, rec.ID).Scan(&prevRowid)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("looking up requirement %s: %w", rec.ID, err)
	}
	if prevRowid.Valid {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_requirements WHERE rowid = ?`, prevRowid.Int64); err != nil {
			return fmt.Errorf("deleting previous embedding: %w", err)
		}
	}

	var vecRowid sql.NullInt64
	if len(rec.Embedding) > 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO vec_requirements (embedding) VALUES (?)`,
			serializeFloat32(rec.Embedding))
		if err != nil {
			return fmt.Errorf("inserting embedding: %w", err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading embedding rowid: %w", err)
		}
		vecRowid = sql.NullInt64{Int64: rowid, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO requirements (id, text, project, volere, created_at, vec_rowid)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			project = excluded.project,
			volere = excluded.volere,
			vec_rowid = excluded.vec_rowid
	`, rec.ID, rec.Text, rec.Project, string(volere), createdAt, vecRowid)
	if err != nil {
		return fmt.Errorf("saving requirement %s: %w", rec.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Get retrieves a requirement by ID.
func (d *Driver) Get(ctx context.Context, id string) (*ltm.Record, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT r.id, r.text, r.project, r.volere, r.created_at, ve.embedding
		FROM requirements r
		LEFT JOIN vec_requirements ve ON ve.rowid = r.vec_rowid
		WHERE r.id = ?
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
		SELECT r.id, r.text, r.project, r.volere, r.created_at, ve.embedding
		FROM requirements r
		LEFT JOIN vec_requirements ve ON ve.rowid = r.vec_rowid
		WHERE r.text LIKE ? COLLATE NOCASE OR r.id LIKE ? COLLATE NOCASE
		ORDER BY r.created_at DESC, r.id DESC
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

// SearchByVector runs a KNN query against the vec0 table. The score is
// 1/(1+distance) so that closer matches score higher on (0, 1].
func (d *Driver) SearchByVector(ctx context.Context, embedding []float32, topK int) ([]ltm.Result, error) {
	if topK <= 0 {
		topK = 10
	}
	if len(embedding) != d.dimensions {
		return nil, fmt.Errorf("query embedding has %d dimensions, expected %d", len(embedding), d.dimensions)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT r.id, r.text, r.project, r.volere, r.created_at, ve.embedding, ve.distance
		FROM vec_requirements ve
		JOIN requirements r ON r.vec_rowid = ve.rowid
		WHERE ve.embedding MATCH ? AND ve.k = ?
		ORDER BY ve.distance
	`, serializeFloat32(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []ltm.Result
	for rows.Next() {
		var (
			rec      ltm.Record
			volere   string
			blob     []byte
			distance float64
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.Project, &volere, &rec.CreatedAt, &blob, &distance); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if err := unmarshalVolere(volere, &rec); err != nil {
			return nil, err
		}
		rec.Embedding = deserializeFloat32(blob)
		out = append(out, ltm.Result{
			Record: rec,
			Score:  float32(1.0 / (1.0 + distance)),
		})
	}
	return out, rows.Err()
}

// All returns every stored requirement, newest first.
func (d *Driver) All(ctx context.Context) ([]ltm.Record, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT r.id, r.text, r.project, r.volere, r.created_at, ve.embedding
		FROM requirements r
		LEFT JOIN vec_requirements ve ON ve.rowid = r.vec_rowid
		ORDER BY r.created_at DESC, r.id DESC
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

// Delete removes a requirement and its embedding.
func (d *Driver) Delete(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowid sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT vec_rowid FROM requirements WHERE id = ?`, id).Scan(&rowid)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up requirement %s: %w", id, err)
	}

	if rowid.Valid {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_requirements WHERE rowid = ?`, rowid.Int64); err != nil {
			return fmt.Errorf("deleting embedding: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM requirements WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting requirement %s: %w", id, err)
	}
	return tx.Commit()
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
		rec    ltm.Record
		volere string
		blob   []byte
	)
	if err := s.Scan(&rec.ID, &rec.Text, &rec.Project, &volere, &rec.CreatedAt, &blob); err != nil {
		return nil, err
	}
	if err := unmarshalVolere(volere, &rec); err != nil {
		return nil, err
	}
	rec.Embedding = deserializeFloat32(blob)
	return &rec, nil
}

func unmarshalVolere(volere string, rec *ltm.Record) error {
	if volere == "" || volere == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(volere), &rec.Volere); err != nil {
		return fmt.Errorf("unmarshaling volere fields: %w", err)
	}
	return nil
}

// serializeFloat32 converts a float32 slice to sqlite-vec's little-endian
// binary format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
