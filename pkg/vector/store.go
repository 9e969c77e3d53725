package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
)

// DefaultTimeout bounds every vector store call.
const DefaultTimeout = 10 * time.Second

// Opener connects a driver. Store calls it lazily on first use.
type Opener func(ctx context.Context) (VectorDriver, error)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Name identifies the driver in errors and logs (e.g. "qdrant").
	Name string

	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// SearchOptions bound and filter Store.Search.
type SearchOptions struct {
	Limit  int
	Filter Filter
}

// Store is the single-document contract the rest of griot uses. It opens its
// driver lazily exactly once (a failed open is retried on the next call),
// applies timeouts, and converts connection failures into
// errdefs.VectorStoreUnavailableError.
type Store struct {
	open   Opener
	config StoreConfig
	logger *slog.Logger

	mu     sync.Mutex
	driver VectorDriver
}

// NewStore creates a store that opens its driver on first use.
func NewStore(open Opener, c StoreConfig, logger *slog.Logger) *Store {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Name == "" {
		c.Name = "vector"
	}
	return &Store{open: open, config: c, logger: logger}
}

// NewStoreWithDriver wraps an already connected driver.
func NewStoreWithDriver(d VectorDriver, c StoreConfig, logger *slog.Logger) *Store {
	return NewStore(func(context.Context) (VectorDriver, error) { return d, nil }, c, logger)
}

// Name returns the configured driver name.
func (s *Store) Name() string {
	return s.config.Name
}

// Store persists doc and returns its id. A UUID is assigned when doc.ID is
// empty.
func (s *Store) Store(ctx context.Context, doc Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	err := s.do(ctx, "store", func(ctx context.Context, d VectorDriver) error {
		return d.Add(ctx, []Document{doc})
	})
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

// Get returns the document with id, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	var docs []Document
	err := s.do(ctx, "get", func(ctx context.Context, d VectorDriver) error {
		var err error
		docs, err = d.Get(ctx, []string{id})
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range docs {
		if docs[i].ID == id {
			return &docs[i], nil
		}
	}
	return nil, nil
}

// Delete removes the document with id. Deleting a missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.do(ctx, "delete", func(ctx context.Context, d VectorDriver) error {
		return d.Delete(ctx, []string{id})
	})
}

// Search returns hits ordered by descending score in [0,1]. Ties keep the
// driver's order.
func (s *Store) Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]QueryResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: query embedding must not be empty", errdefs.ErrInvalidInput)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	var results []QueryResult
	err := s.do(ctx, "search", func(ctx context.Context, d VectorDriver) error {
		var err error
		results, err = d.Query(ctx, embedding, QueryOptions{Limit: limit, Filter: opts.Filter})
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Score = clamp01(results[i].Score)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, "count", func(ctx context.Context, d VectorDriver) error {
		var err error
		n, err = d.Count(ctx)
		return err
	})
	return n, err
}

// Close releases the driver if it was opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver == nil {
		return nil
	}
	err := s.driver.Close()
	s.driver = nil
	return err
}

func (s *Store) do(ctx context.Context, op string, fn func(context.Context, VectorDriver) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	d, err := s.ensure(ctx)
	if err != nil {
		return err
	}

	if err := fn(ctx, d); err != nil {
		if isUnavailable(err) {
			return &errdefs.VectorStoreUnavailableError{Store: s.config.Name, Op: op, Err: err}
		}
		return fmt.Errorf("%s %s: %w", s.config.Name, op, err)
	}
	return nil
}

func (s *Store) ensure(ctx context.Context) (VectorDriver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver != nil {
		return s.driver, nil
	}

	d, err := s.open(ctx)
	if err != nil {
		return nil, &errdefs.VectorStoreUnavailableError{Store: s.config.Name, Op: "open", Err: err}
	}
	s.driver = d

	s.logger.Debug("vector store opened", "store", s.config.Name)
	return d, nil
}

func isUnavailable(err error) bool {
	if errors.Is(err, ErrConnection) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func clamp01(f float32) float32 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
