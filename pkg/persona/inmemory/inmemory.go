// Package inmemory provides an in-memory persona.Store.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/davidhonghikim/griot-sub000/pkg/persona"
)

// Store keeps personas in a map guarded by a RWMutex. List returns personas
// in insertion order.
type Store struct {
	mu       sync.RWMutex
	personas map[string]*persona.Persona
	order    map[string]int
	next     int
}

// NewStore creates a store seeded with the given personas.
func NewStore(personas ...*persona.Persona) *Store {
	s := &Store{
		personas: make(map[string]*persona.Persona),
		order:    make(map[string]int),
	}
	for _, p := range personas {
		s.Put(p)
	}
	return s
}

// Put inserts or replaces a persona. Replacing keeps the original position.
func (s *Store) Put(p *persona.Persona) {
	if p == nil || p.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	if _, ok := s.order[p.ID]; !ok {
		s.order[p.ID] = s.next
		s.next++
	}
	s.personas[p.ID] = &cp
}

// Remove deletes a persona. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.personas, id)
	delete(s.order, id)
}

// Load implements persona.Store.
func (s *Store) Load(_ context.Context, id string) (*persona.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.personas[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// List implements persona.Store.
func (s *Store) List(_ context.Context) ([]*persona.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*persona.Persona, 0, len(s.personas))
	for _, p := range s.personas {
		cp := *p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return s.order[out[i].ID] < s.order[out[j].ID]
	})
	return out, nil
}
