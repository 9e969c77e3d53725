package embeddings

import (
	"fmt"
	"math"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
)

// ValidateEmbedding performs the structural check every vector must pass
// before storage: non-empty, every element finite, not all zero. A zero
// vector indicates a degenerate embedding.
func ValidateEmbedding(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", errdefs.ErrInvalidEmbedding)
	}

	nonZero := false
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite element at index %d", errdefs.ErrInvalidEmbedding, i)
		}
		if v != 0 {
			nonZero = true
		}
	}

	if !nonZero {
		return fmt.Errorf("%w: all-zero vector", errdefs.ErrInvalidEmbedding)
	}
	return nil
}
