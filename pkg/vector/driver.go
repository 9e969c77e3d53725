// Package vector provides interfaces and implementations for vector storage
// and filtered nearest-neighbour search.
package vector

import "context"

// MetadataType is the metadata key every stored document carries to
// identify the entity kind it represents.
const MetadataType = "type"

// Document represents a stored item with its embedding and metadata.
type Document struct {
	// ID is a unique identifier for the document.
	ID string `json:"id"`

	// Content is the text that was embedded.
	Content string `json:"content"`

	// Embedding is the vector representation of Content.
	Embedding []float32 `json:"embedding,omitempty"`

	// Metadata holds scalar values and string lists. Metadata[MetadataType]
	// identifies the entity kind.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is 1 - cosine distance (higher = more similar).
	Score float32 `json:"score"`
}

// QueryOptions bound and filter a Query.
type QueryOptions struct {
	// Limit is the maximum number of results. Drivers default to 10.
	Limit int

	// Filter restricts results. Evaluated by the store.
	Filter Filter
}

// VectorDriver handles storage and retrieval of vector embeddings.
type VectorDriver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the most similar documents to the given embedding that
	// match opts.Filter, ordered by descending score.
	Query(ctx context.Context, embedding []float32, opts QueryOptions) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
