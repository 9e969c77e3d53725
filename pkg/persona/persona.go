// Package persona defines the Persona entity and the read-only entity store
// contract griot consumes from the content-management side.
package persona

import (
	"context"
	"time"
)

// EntityType is the vector document type used for personas.
const EntityType = "persona"

// Persona is a named character profile with descriptive and structured
// content. It is the unit being retrieved.
type Persona struct {
	// ID is the persona UUID.
	ID string `json:"id" toml:"id"`

	// Name is the display name.
	Name string `json:"name" toml:"name"`

	// Classification fields.
	Base    string   `json:"base,omitempty" toml:"base,omitempty"`
	Variant string   `json:"variant,omitempty" toml:"variant,omitempty"`
	Author  string   `json:"author,omitempty" toml:"author,omitempty"`
	Tags    []string `json:"tags,omitempty" toml:"tags,omitempty"`

	// Description is free text.
	Description string `json:"description,omitempty" toml:"description,omitempty"`

	// Content is the structured body.
	Content Content `json:"content" toml:"content"`

	UpdatedAt time.Time `json:"updated_at,omitempty" toml:"updated_at,omitempty"`
}

// Content is the structured body of a persona.
type Content struct {
	Skills             []string `json:"skills,omitempty" toml:"skills,omitempty"`
	Knowledge          []string `json:"knowledge,omitempty" toml:"knowledge,omitempty"`
	Personality        string   `json:"personality,omitempty" toml:"personality,omitempty"`
	CommunicationStyle string   `json:"communication_style,omitempty" toml:"communication_style,omitempty"`
}

// Store is the entity content store. Both methods must tolerate missing
// data: Load returns (nil, nil) for an unknown id and List may return an
// empty slice.
type Store interface {
	// Load returns the persona with the given id, or nil when absent.
	Load(ctx context.Context, id string) (*Persona, error)

	// List returns every persona known to the store.
	List(ctx context.Context) ([]*Persona, error)
}
