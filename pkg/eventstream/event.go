package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypePersonaVectorized is emitted after a persona document is
	// stored and the vectorization index points at it.
	EventTypePersonaVectorized = "griot.persona.vectorized"
)

// VectorizedEvent is a transport-neutral event payload for a successful
// vectorization or revectorization.
type VectorizedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	DocumentID string `json:"document_id"`

	// PreviousDocumentID is set when an older document was replaced.
	PreviousDocumentID string `json:"previous_document_id,omitempty"`

	ContentLength int   `json:"content_length"`
	DurationMs    int64 `json:"duration_ms"`
	Revectorized  bool  `json:"revectorized"`
}

// NewVectorizedEvent fills the envelope fields.
func NewVectorizedEvent(entityType, entityID, documentID string) *VectorizedEvent {
	return &VectorizedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypePersonaVectorized,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		EntityType:    entityType,
		EntityID:      entityID,
		DocumentID:    documentID,
	}
}
