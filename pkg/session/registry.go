package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reqvibe/reqvibe/pkg/chat"
	"github.com/reqvibe/reqvibe/pkg/ltm"
	"github.com/reqvibe/reqvibe/pkg/memory"
)

// defaultTitlePrefix marks sessions that have not been renamed yet;
// UpdateTitle only replaces titles that still carry it.
const defaultTitlePrefix = "New Chat"

// titleMaxLen is how much of the first user message becomes the title.
const titleMaxLen = 50

// Store is the persistence surface the registry needs from the
// conversation store. Implementations never return errors: persistence
// failure degrades to in-memory operation.
type Store interface {
	SaveSessions(ctx context.Context, sessions map[string]Record) bool
	LoadSessions() map[string]Record
	DeleteAllSessions() bool
}

// Registry owns the active short-term memory, the session map, and the
// links to the conversation store and the long-term requirement store.
// It replaces ad-hoc per-request session state with one explicit object.
//
// All methods are safe for concurrent use; the registry serializes
// access with a single mutex, matching the one-active-conversation
// model.
type Registry struct {
	mu sync.Mutex

	memory   *memory.ShortTermMemory
	store    Store
	ltm      ltm.Driver
	logger   *slog.Logger
	now      func() time.Time
	persist  bool
	model    string
	sessions map[string]Record
	current  string
	counter  int
}

// RegistryOption configures a Registry created with NewRegistry.
type RegistryOption func(*Registry)

// WithStore attaches a conversation store and enables persistence.
func WithStore(s Store) RegistryOption {
	return func(r *Registry) {
		if s != nil {
			r.store = s
			r.persist = true
		}
	}
}

// WithLTM attaches a long-term requirement store. Extracted requirements
// are forwarded to it on AddRequirement.
func WithLTM(d ltm.Driver) RegistryOption {
	return func(r *Registry) {
		if d != nil {
			r.ltm = d
		}
	}
}

// WithRegistryLogger sets the logger for persistence warnings.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithModel sets the model recorded on new sessions.
func WithModel(model string) RegistryOption {
	return func(r *Registry) {
		r.model = model
	}
}

// WithClock overrides the registry's time source, for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates a registry around the given short-term memory. A
// nil mem gets a fresh memory with the default estimator.
func NewRegistry(mem *memory.ShortTermMemory, opts ...RegistryOption) *Registry {
	if mem == nil {
		mem = memory.New(nil)
	}

	r := &Registry{
		memory:   mem,
		logger:   slog.Default(),
		now:      time.Now,
		sessions: make(map[string]Record),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Memory returns the active short-term memory. Callers mutating it must
// not hold a stale reference across Switch or NewSession; the memory
// object stays the same but its contents are replaced.
func (r *Registry) Memory() *memory.ShortTermMemory {
	return r.memory
}

// SetPersistence toggles saving to the conversation store. Disabling it
// keeps the store attached so it can be re-enabled later.
func (r *Registry) SetPersistence(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persist = enabled && r.store != nil
}

// NewSession snapshots the current session, creates a fresh one with a
// generated ID and a default title, resets the short-term memory, and
// persists. Returns the new session's ID.
func (r *Registry) NewSession(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshotCurrentLocked()

	r.counter++
	rec := Record{
		ID:        uuid.NewString(),
		Title:     fmt.Sprintf("%s %d", defaultTitlePrefix, r.counter),
		CreatedAt: r.now().UTC(),
		Model:     r.model,
	}
	r.sessions[rec.ID] = rec
	r.current = rec.ID

	r.memory.ClearHistory()
	r.saveLocked(ctx)
	return rec.ID
}

// Current returns the active session record, creating one when none
// exists yet.
func (r *Registry) Current(ctx context.Context) Record {
	r.mu.Lock()
	if r.current != "" {
		rec := r.sessions[r.current]
		rec.Messages = r.memory.Messages(true)
		r.mu.Unlock()
		return rec
	}
	r.mu.Unlock()

	id := r.NewSession(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Switch snapshots the current session and makes id the active one,
// loading its messages into the short-term memory.
func (r *Registry) Switch(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("unknown session %q", id)
	}
	if id == r.current {
		return nil
	}

	r.snapshotCurrentLocked()
	r.current = id
	r.memory.LoadMessages(target.Messages, true)
	r.saveLocked(ctx)
	return nil
}

// Sessions returns all known session records, newest first. The current
// session reflects the live memory contents.
func (r *Registry) Sessions() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshotCurrentLocked()

	out := make([]Record, 0, len(r.sessions))
	for _, rec := range r.sessions {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Get returns a session by ID.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshotCurrentLocked()
	rec, ok := r.sessions[id]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// CurrentID returns the active session ID, which is empty before the
// first session is created.
func (r *Registry) CurrentID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// UpdateTitle derives the current session's title from its first user
// message: the first 50 characters, with an ellipsis when truncated.
// Sessions that have already been renamed keep their title.
func (r *Registry) UpdateTitle(firstMessage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateTitleLocked(firstMessage)
}

func (r *Registry) updateTitleLocked(firstMessage string) {
	rec, ok := r.sessions[r.current]
	if !ok || !strings.HasPrefix(rec.Title, defaultTitlePrefix) {
		return
	}

	title := strings.TrimSpace(firstMessage)
	if title == "" {
		return
	}
	if runes := []rune(title); len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen]) + "..."
	}

	rec.Title = title
	r.sessions[r.current] = rec
}

// Sync snapshots the live memory into the current record and persists
// all sessions. Returns false when persistence is enabled but the save
// failed.
func (r *Registry) Sync(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshotCurrentLocked()
	return r.saveLocked(ctx)
}

// LoadFromDisk merges persisted sessions into the registry without
// overwriting live ones. When no session is active, the most recent
// loaded session becomes current and its messages are loaded into
// memory.
func (r *Registry) LoadFromDisk() {
	if r.store == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	loaded := r.store.LoadSessions()
	for id, rec := range loaded {
		if _, exists := r.sessions[id]; exists {
			continue
		}
		r.sessions[id] = rec
		r.counter++
	}

	if r.current != "" || len(r.sessions) == 0 {
		return
	}

	var newest Record
	for _, rec := range r.sessions {
		if newest.ID == "" || rec.CreatedAt.After(newest.CreatedAt) {
			newest = rec
		}
	}
	r.current = newest.ID
	r.memory.LoadMessages(newest.Messages, true)
}

// AddMessage records a message in the active conversation, creating a
// session when none exists. The first user message also sets the title.
func (r *Registry) AddMessage(ctx context.Context, role chat.Role, content string) {
	r.mu.Lock()
	needSession := r.current == ""
	r.mu.Unlock()

	if needSession {
		r.NewSession(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if role == chat.RoleUser && r.firstUserMessageLocked() {
		r.updateTitleLocked(content)
	}
	r.memory.AddMessage(role, content)
}

// AddRequirement records an extracted requirement in short-term memory
// and, when a long-term store is attached, persists it there too.
// Long-term failures are logged and swallowed: requirement capture must
// never break the conversation.
func (r *Registry) AddRequirement(ctx context.Context, req memory.Requirement) {
	r.mu.Lock()
	r.memory.AddRequirement(req)
	driver := r.ltm
	r.mu.Unlock()

	if driver == nil {
		return
	}

	rec := ltm.Record{
		ID:        req.ID,
		Text:      req.Text,
		Volere:    req.Volere,
		CreatedAt: r.now().UTC(),
	}
	if err := driver.Save(ctx, rec); err != nil {
		r.logger.Warn("saving requirement to long-term memory failed",
			"requirement", req.ID,
			"error", err,
		)
	}
}

// ClearAll drops every session, resets the memory, and removes the
// on-disk file when persistence is enabled.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions = make(map[string]Record)
	r.current = ""
	r.counter = 0
	r.memory.ClearAll()

	if r.persist && r.store != nil {
		r.store.DeleteAllSessions()
	}
}

// snapshotCurrentLocked writes the live memory back into the current
// session's record. Callers must hold r.mu.
func (r *Registry) snapshotCurrentLocked() {
	if r.current == "" {
		return
	}
	rec, ok := r.sessions[r.current]
	if !ok {
		return
	}
	rec.Messages = r.memory.Messages(true)
	r.sessions[r.current] = rec
}

// saveLocked persists the session map when persistence is enabled.
// Callers must hold r.mu.
func (r *Registry) saveLocked(ctx context.Context) bool {
	if !r.persist || r.store == nil {
		return true
	}
	if ok := r.store.SaveSessions(ctx, r.sessions); !ok {
		r.logger.Warn("persisting sessions failed, continuing in memory")
		return false
	}
	return true
}

func (r *Registry) firstUserMessageLocked() bool {
	for _, msg := range r.memory.Messages(false) {
		if msg.Role == chat.RoleUser {
			return false
		}
	}
	return true
}
