package vector

import "errors"

var (
	// ErrConnection is wrapped by drivers when the backing store cannot be
	// reached. Store converts it into errdefs.VectorStoreUnavailableError.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDimensionMismatch is returned when an embedding does not match the
	// configured dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
