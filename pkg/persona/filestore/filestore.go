// Package filestore provides a persona.Store backed by a directory of persona
// files. Each *.toml or *.json file holds exactly one persona. Files are read
// on every call so edits made by the content-management process are visible
// to the next revectorization.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/davidhonghikim/griot-sub000/pkg/persona"
)

// Store reads personas from Dir.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a file-backed store. The directory must exist.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("persona directory is required")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening persona directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("persona path %s is not a directory", dir)
	}

	return &Store{dir: dir, logger: logger}, nil
}

// Load implements persona.Store. Unknown ids return (nil, nil).
func (s *Store) Load(ctx context.Context, id string) (*persona.Persona, error) {
	personas, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range personas {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

// List implements persona.Store. Files that fail to parse are skipped with a
// warning so one bad file does not hide the rest of the catalog.
func (s *Store) List(ctx context.Context) ([]*persona.Persona, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading persona directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isPersonaFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	personas := make([]*persona.Persona, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.dir, name)
		p, err := readFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable persona file",
				"path", path,
				"error", err,
			)
			continue
		}
		if p.ID == "" {
			s.logger.Warn("skipping persona file without id", "path", path)
			continue
		}
		personas = append(personas, p)
	}

	return personas, nil
}

func readFile(path string) (*persona.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p := &persona.Persona{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("parsing persona JSON: %w", err)
		}
		return p, nil
	}

	if err := toml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing persona TOML: %w", err)
	}
	return p, nil
}
