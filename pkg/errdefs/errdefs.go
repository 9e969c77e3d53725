// Package errdefs defines the error taxonomy shared by every griot layer.
//
// Lower layers (embeddings, vector stores, generation backends) return the
// typed errors below. Public operation boundaries convert them into tagged
// results carrying Success=false and a human readable error string.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for empty or malformed caller input.
	// Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuery is returned when a retrieval query is empty.
	ErrInvalidQuery = fmt.Errorf("%w: query must not be empty", ErrInvalidInput)

	// ErrInvalidEmbedding is returned when a vector fails structural validation.
	ErrInvalidEmbedding = errors.New("invalid embedding")

	// ErrProviderUnavailable is returned when an embedding provider, vector
	// store or generation backend cannot be reached. Safe to retry with backoff.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrBackendGeneration is returned when a backend is reachable but failed
	// to generate. Retry with the same or a fallback model.
	ErrBackendGeneration = errors.New("backend generation failed")

	// ErrNotFound is returned when an entity or vector id is absent.
	ErrNotFound = errors.New("not found")
)

// EmbeddingProviderError wraps a failure from an embedding backend.
type EmbeddingProviderError struct {
	Provider string
	Err      error
}

func (e *EmbeddingProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *EmbeddingProviderError) Unwrap() []error {
	return []error{ErrProviderUnavailable, e.Err}
}

// VectorStoreUnavailableError wraps a connection or timeout failure of a
// vector store driver.
type VectorStoreUnavailableError struct {
	Store string
	Op    string
	Err   error
}

func (e *VectorStoreUnavailableError) Error() string {
	return fmt.Sprintf("vector store %s unavailable during %s: %v", e.Store, e.Op, e.Err)
}

func (e *VectorStoreUnavailableError) Unwrap() []error {
	return []error{ErrProviderUnavailable, e.Err}
}

// BackendUnavailableError is returned by health checks and model listing
// when a generation backend cannot be reached.
type BackendUnavailableError struct {
	Backend  string
	Endpoint string
	Err      error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend %s at %s unavailable: %v", e.Backend, e.Endpoint, e.Err)
}

func (e *BackendUnavailableError) Unwrap() []error {
	return []error{ErrProviderUnavailable, e.Err}
}

// BackendGenerationError is returned when a reachable backend fails to
// produce a completion.
type BackendGenerationError struct {
	Backend string
	Model   string
	Err     error
}

func (e *BackendGenerationError) Error() string {
	return fmt.Sprintf("backend %s failed to generate with model %q: %v", e.Backend, e.Model, e.Err)
}

func (e *BackendGenerationError) Unwrap() []error {
	return []error{ErrBackendGeneration, e.Err}
}

// NotFoundError reports a missing entity or document.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Retryable reports whether an operation that failed with err may succeed
// when retried.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidEmbedding):
		return false
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrBackendGeneration):
		return true
	default:
		return false
	}
}
