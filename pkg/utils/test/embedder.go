package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// Texts without an explicit entry get a deterministic bag-of-words vector,
// so equal texts always embed equally and different texts usually differ.
type MockEmbedder struct {
	mu sync.Mutex

	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// FailOnContains causes Embed to return an error when the input text
	// contains the substring.
	FailOnContains string

	// Calls counts Embed invocations.
	Calls int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("mock embedding failure for: %s", text)
	}
	if m.FailOnContains != "" && strings.Contains(text, m.FailOnContains) {
		return nil, fmt.Errorf("mock network failure for text containing: %s", m.FailOnContains)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	return HashEmbedding(text, 16), nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

// MockBatchEmbedder adds EmbedMany to MockEmbedder and records batch sizes.
type MockBatchEmbedder struct {
	*MockEmbedder

	BatchSizes []int
}

func NewMockBatchEmbedder() *MockBatchEmbedder {
	return &MockBatchEmbedder{MockEmbedder: NewMockEmbedder()}
}

func (m *MockBatchEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	m.BatchSizes = append(m.BatchSizes, len(texts))
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// HashEmbedding hashes each lowercased word of text into one of dims
// buckets. The result is never all-zero for non-empty text.
func HashEmbedding(text string, dims int) []float32 {
	v := make([]float32, dims)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		words = []string{text}
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dims)] += 1
	}
	return v
}
