package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/davidhonghikim/griot-sub000/pkg/vector"
	"github.com/davidhonghikim/griot-sub000/pkg/vector/inmemory"
)

// ErrMockVector is returned by MockVectorDriver when a failure is injected.
var ErrMockVector = errors.New("mock vector driver failure")

// MockVectorDriver is an in-memory vector driver with failure injection and
// call accounting.
type MockVectorDriver struct {
	*inmemory.Driver

	mu sync.Mutex

	// FailAdd causes Add to return ErrMockVector.
	FailAdd bool

	// FailQuery causes Query to return ErrMockVector.
	FailQuery bool

	// FailDelete causes Delete to return ErrMockVector.
	FailDelete bool

	// Unavailable wraps every error in vector.ErrConnection.
	Unavailable bool

	AddCalls    int
	QueryCalls  int
	DeleteCalls int

	// LastQuery records the options of the most recent Query.
	LastQuery vector.QueryOptions
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{Driver: inmemory.NewDriver()}
}

func (m *MockVectorDriver) fail() error {
	if m.Unavailable {
		return errors.Join(vector.ErrConnection, ErrMockVector)
	}
	return ErrMockVector
}

func (m *MockVectorDriver) Add(ctx context.Context, docs []vector.Document) error {
	m.mu.Lock()
	m.AddCalls++
	fail := m.FailAdd || m.Unavailable
	m.mu.Unlock()

	if fail {
		return m.fail()
	}
	return m.Driver.Add(ctx, docs)
}

func (m *MockVectorDriver) Query(ctx context.Context, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	m.mu.Lock()
	m.QueryCalls++
	m.LastQuery = opts
	fail := m.FailQuery || m.Unavailable
	m.mu.Unlock()

	if fail {
		return nil, m.fail()
	}
	return m.Driver.Query(ctx, embedding, opts)
}

func (m *MockVectorDriver) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	m.DeleteCalls++
	fail := m.FailDelete || m.Unavailable
	m.mu.Unlock()

	if fail {
		return m.fail()
	}
	return m.Driver.Delete(ctx, ids)
}

var _ vector.VectorDriver = (*MockVectorDriver)(nil)
