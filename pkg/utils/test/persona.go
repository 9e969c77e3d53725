package testutils

import (
	"time"

	"github.com/davidhonghikim/griot-sub000/pkg/persona"
)

// NewTestPersona creates a simple persona for testing
func NewTestPersona(id, name, base string, tags ...string) *persona.Persona {
	return &persona.Persona{
		ID:          id,
		Name:        name,
		Base:        base,
		Author:      "griot",
		Tags:        tags,
		Description: name + " is a " + base + ".",
		Content: persona.Content{
			Skills:      []string{base},
			Personality: "Patient and curious.",
		},
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
