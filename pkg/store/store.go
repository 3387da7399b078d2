// Package store implements the per-user, disk-backed conversation store:
// a bounded set of sessions serialized to a single JSON file with count
// and byte limits, a content-signature write-skip, and atomic replace
// semantics.
//
// Nothing in this package raises a fatal error. Persistence failures
// degrade to "persistence unavailable, continue in-memory" - saves return
// false, loads return an empty map - so the conversation stays usable at
// the cost of history completeness.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/reqvibe/reqvibe/pkg/eventstream"
	"github.com/reqvibe/reqvibe/pkg/eventstream/nop"
	"github.com/reqvibe/reqvibe/pkg/session"
)

const (
	// DefaultMaxConversations is the per-user record limit.
	DefaultMaxConversations = 10

	// DefaultMaxStorageBytes is the per-user file size limit (1 MiB).
	DefaultMaxStorageBytes = 1 * 1024 * 1024

	// DefaultBaseDir is the root of the per-user directory tree.
	DefaultBaseDir = "conversations"

	sessionsFileName = "sessions.json"
)

// envelope is the canonical on-disk format: records ordered by creation
// time, most recent first.
type envelope struct {
	Sessions []session.Record `json:"sessions"`
}

// Info describes the current on-disk state for a user.
type Info struct {
	SessionCount     int `json:"session_count"`
	StorageBytes     int `json:"storage_bytes"`
	MaxConversations int `json:"max_conversations"`
	MaxStorageBytes  int `json:"max_storage_bytes"`
}

// ConversationStore persists one user's sessions. It is single-owner like
// the memory it persists: concurrent writers to the same user's file are
// an accepted race (no file locking), matching the one-session-per-user
// execution model.
type ConversationStore struct {
	username string
	userDir  string

	maxConversations int
	maxStorageBytes  int

	logger    *slog.Logger
	publisher eventstream.Publisher

	// lastSignature is the sha256 of the last payload written; a
	// matching signature skips the disk write entirely.
	lastSignature string
}

// Option configures a ConversationStore created with New.
type Option func(*ConversationStore)

// WithBaseDir overrides the base directory (default "conversations").
func WithBaseDir(dir string) Option {
	return func(s *ConversationStore) {
		if dir != "" {
			s.userDir = filepath.Join(dir, s.username)
		}
	}
}

// WithMaxConversations overrides the record count limit.
func WithMaxConversations(n int) Option {
	return func(s *ConversationStore) {
		if n > 0 {
			s.maxConversations = n
		}
	}
}

// WithMaxStorageBytes overrides the byte budget for the on-disk file.
func WithMaxStorageBytes(n int) Option {
	return func(s *ConversationStore) {
		if n > 0 {
			s.maxStorageBytes = n
		}
	}
}

// WithLogger sets the logger for degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ConversationStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher sets the eventstream publisher notified after each real
// (non-skipped) write. Publish failures never fail a save.
func WithPublisher(p eventstream.Publisher) Option {
	return func(s *ConversationStore) {
		if p != nil {
			s.publisher = p
		}
	}
}

// New creates a store for one user and ensures the user directory exists.
func New(username string, opts ...Option) (*ConversationStore, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}

	s := &ConversationStore{
		username:         username,
		userDir:          filepath.Join(DefaultBaseDir, username),
		maxConversations: DefaultMaxConversations,
		maxStorageBytes:  DefaultMaxStorageBytes,
		logger:           slog.Default(),
		publisher:        nop.NewPublisher(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.userDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating user directory %s: %w", s.userDir, err)
	}

	return s, nil
}

// Path returns the sessions file path for this user.
func (s *ConversationStore) Path() string {
	return filepath.Join(s.userDir, sessionsFileName)
}

// SaveSessions enforces the count and byte limits, then writes the
// payload atomically unless it is byte-identical to the last write.
// The written file never exceeds the byte limit: messages are
// truncated first, then whole sessions are evicted oldest-first.
// Returns false on any I/O failure (or a limit too small to hold even
// an empty file); the caller treats false as "persistence unavailable"
// and keeps going in memory.
func (s *ConversationStore) SaveSessions(ctx context.Context, sessions map[string]session.Record) bool {
	records := make([]session.Record, 0, len(sessions))
	for _, rec := range sessions {
		records = append(records, rec.Clone())
	}

	// Newest first; ID as tie-break keeps truncation deterministic.
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	var evicted []string
	if len(records) > s.maxConversations {
		for _, rec := range records[s.maxConversations:] {
			evicted = append(evicted, rec.ID)
		}
		records = records[:s.maxConversations]
	}

	payload, err := json.Marshal(envelope{Sessions: records})
	if err != nil {
		s.logger.Warn("serializing sessions failed", "user", s.username, "error", err)
		return false
	}

	var truncated []string
	if len(payload) > s.maxStorageBytes {
		payload, truncated, err = s.shrink(records)
		if err != nil {
			s.logger.Warn("shrinking sessions failed", "user", s.username, "error", err)
			return false
		}

		// Metadata alone can still be over budget. Evict whole
		// sessions oldest-first until the payload fits.
		for len(payload) > s.maxStorageBytes && len(records) > 0 {
			evicted = append(evicted, records[len(records)-1].ID)
			records = records[:len(records)-1]
			payload, err = json.Marshal(envelope{Sessions: records})
			if err != nil {
				s.logger.Warn("serializing sessions failed", "user", s.username, "error", err)
				return false
			}
		}
		if len(payload) > s.maxStorageBytes {
			s.logger.Warn("storage limit smaller than an empty sessions file",
				"limit", s.maxStorageBytes,
			)
			return false
		}
	}

	sum := sha256.Sum256(payload)
	signature := hex.EncodeToString(sum[:])
	if signature == s.lastSignature {
		s.logger.Debug("sessions unchanged, skipping write", "user", s.username)
		return true
	}

	if err := s.writeAtomic(payload); err != nil {
		s.logger.Warn("writing sessions failed",
			"user", s.username,
			"path", s.Path(),
			"error", err,
		)
		return false
	}

	s.lastSignature = signature
	s.publish(ctx, len(records), len(payload), evicted, truncated)

	s.logger.Debug("sessions saved",
		"user", s.username,
		"count", len(records),
		"bytes", len(payload),
	)
	return true
}

// shrink cuts message lists until the serialized payload fits the byte
// budget. Records are cut oldest first, and within a record the oldest
// messages go first, so newer sessions always retain at least as much of
// their history as older ones.
func (s *ConversationStore) shrink(records []session.Record) ([]byte, []string, error) {
	var truncated []string

	for i := len(records) - 1; i >= 0; i-- {
		cut := false
		for len(records[i].Messages) > 0 {
			payload, err := json.Marshal(envelope{Sessions: records})
			if err != nil {
				return nil, nil, err
			}
			if len(payload) <= s.maxStorageBytes {
				if cut {
					truncated = append(truncated, records[i].ID)
				}
				return payload, truncated, nil
			}

			// Drop the older half of this record's messages.
			keepFrom := (len(records[i].Messages) + 1) / 2
			records[i].Messages = records[i].Messages[keepFrom:]
			cut = true
		}

		records[i].Messages = nil
		if cut {
			truncated = append(truncated, records[i].ID)
		}
	}

	payload, err := json.Marshal(envelope{Sessions: records})
	if err != nil {
		return nil, nil, err
	}
	return payload, truncated, nil
}

// writeAtomic writes payload to a temp file in the user directory and
// renames it over the sessions file.
func (s *ConversationStore) writeAtomic(payload []byte) error {
	tmp, err := os.CreateTemp(s.userDir, sessionsFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing sessions file: %w", err)
	}
	return nil
}

func (s *ConversationStore) publish(ctx context.Context, count, bytes int, evicted, truncated []string) {
	event := &eventstream.SessionPersistedEvent{
		SchemaVersion:       eventstream.SchemaVersionV1,
		EventType:           eventstream.EventTypeSessionPersisted,
		EventID:             uuid.NewString(),
		EmittedAt:           time.Now().UTC(),
		Username:            s.username,
		SessionCount:        count,
		PayloadBytes:        bytes,
		EvictedSessionIDs:   evicted,
		TruncatedSessionIDs: truncated,
	}

	if err := s.publisher.PublishSession(ctx, event); err != nil {
		s.logger.Warn("publishing session event failed", "user", s.username, "error", err)
	}
}

// LoadSessions reads the user's sessions file into a map keyed by session
// ID. A missing file or unparseable content both yield an empty map:
// corrupt history is treated as no history, never as a fatal error.
func (s *ConversationStore) LoadSessions() map[string]session.Record {
	out := make(map[string]session.Record)

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("reading sessions failed", "user", s.username, "error", err)
		}
		return out
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("sessions file is corrupt, starting fresh", "user", s.username, "error", err)
		return out
	}

	for _, rec := range env.Sessions {
		if rec.ID == "" {
			continue
		}
		out[rec.ID] = rec
	}
	return out
}

// StorageInfo reports the current on-disk state without mutating it.
func (s *ConversationStore) StorageInfo() Info {
	info := Info{
		MaxConversations: s.maxConversations,
		MaxStorageBytes:  s.maxStorageBytes,
	}

	stat, err := os.Stat(s.Path())
	if err != nil {
		return info
	}
	info.StorageBytes = int(stat.Size())
	info.SessionCount = len(s.LoadSessions())
	return info
}

// DeleteAllSessions removes the user's sessions file. Returns false only
// when a file exists and cannot be removed.
func (s *ConversationStore) DeleteAllSessions() bool {
	err := os.Remove(s.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("deleting sessions failed", "user", s.username, "error", err)
		return false
	}
	s.lastSignature = ""
	return true
}
