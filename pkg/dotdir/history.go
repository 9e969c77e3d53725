package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	historyFile = "history.json"

	// DefaultHistoryLimit is how many queries are kept per user.
	DefaultHistoryLimit = 20
)

// History is the persisted query history, keyed by user id.
type History struct {
	Users map[string][]HistoryEntry `json:"users"`
}

// HistoryEntry is one recorded query.
type HistoryEntry struct {
	Query string    `json:"query"`
	At    time.Time `json:"at"`
}

// Queries returns the recorded queries for userID, oldest first.
func (h *History) Queries(userID string) []string {
	if h == nil {
		return nil
	}
	entries := h.Users[userID]
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Query)
	}
	return out
}

// LoadHistory loads the query history from a target .griot/history.json.
// Returns an empty History if no file exists.
func (m *Manager) LoadHistory(overrideDir string) (*History, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, historyFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &History{Users: map[string][]HistoryEntry{}}, nil
		}
		return nil, fmt.Errorf("reading history: %w", err)
	}

	h := &History{}
	if err := json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("parsing history: %w", err)
	}
	if h.Users == nil {
		h.Users = map[string][]HistoryEntry{}
	}

	return h, nil
}

// AppendHistory records query for userID, keeping at most limit entries
// (DefaultHistoryLimit when limit <= 0).
func (m *Manager) AppendHistory(userID, query string, limit int, overrideDir string) error {
	if userID == "" || query == "" {
		return errors.New("history needs a user id and a query")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	h, err := m.LoadHistory(overrideDir)
	if err != nil {
		return err
	}

	entries := append(h.Users[userID], HistoryEntry{Query: query, At: time.Now().UTC()})
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	h.Users[userID] = entries

	return m.saveHistory(h, overrideDir)
}

// ClearHistory removes the history of userID. An empty userID removes the
// whole file. Returns nil if there is nothing to clear.
func (m *Manager) ClearHistory(userID, overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if userID != "" {
		h, err := m.LoadHistory(overrideDir)
		if err != nil {
			return err
		}
		delete(h.Users, userID)
		return m.saveHistory(h, overrideDir)
	}

	if err := os.Remove(filepath.Join(dir, historyFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing history: %w", err)
	}

	return nil
}

func (m *Manager) saveHistory(h *History, overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, historyFile), data, 0o600); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}

	return nil
}
