package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	stateFile = "state.json"
)

// ActiveState is the persisted chat state: which user and session the
// next chat command should resume.
type ActiveState struct {
	// Username is the user whose conversation store is active.
	Username string `json:"username"`

	// SessionID is the session the user last had open.
	SessionID string `json:"session_id"`
}

// LoadActiveState loads the active state from a target .reqvibe/state.json.
// Returns nil, nil if no state exists (fresh start).
// If overrideDir is non-empty, it is used instead of the default ~/.reqvibe/ location.
func (m *Manager) LoadActiveState(overrideDir string) (*ActiveState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading active state: %w", err)
	}

	state := &ActiveState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing active state: %w", err)
	}

	return state, nil
}

// SaveActiveState persists the active state to a target .reqvibe/state.json.
func (m *Manager) SaveActiveState(state *ActiveState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil active state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling active state: %w", err)
	}

	path := filepath.Join(dir, stateFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing active state: %w", err)
	}

	return nil
}

// ClearActiveState removes the state file.
// The next chat command starts with a fresh session.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearActiveState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, stateFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing active state: %w", err)
	}

	return nil
}
