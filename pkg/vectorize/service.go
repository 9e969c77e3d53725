// Package vectorize turns personas into stored vector documents and keeps
// the entity id -> document id index that retrieval relies on.
package vectorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/davidhonghikim/griot-sub000/pkg/embeddings"
	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/eventstream"
	"github.com/davidhonghikim/griot-sub000/pkg/persona"
	"github.com/davidhonghikim/griot-sub000/pkg/vector"
)

const (
	DefaultInterItemDelay = 100 * time.Millisecond
	DefaultRecoveryCap    = 1000
)

// Metadata keys written on every persona document.
const (
	MetaEntityID      = "personaId"
	MetaName          = "name"
	MetaBase          = "base"
	MetaVariant       = "variant"
	MetaAuthor        = "author"
	MetaTags          = "tags"
	MetaContentLength = "contentLength"
	MetaVectorizedAt  = "vectorizedAt"
)

// Config configures a Service.
type Config struct {
	// EntityType is written to the document type metadata and used to scope
	// searches. Defaults to persona.EntityType.
	EntityType string

	// InterItemDelay throttles VectorizeAll. Zero uses
	// DefaultInterItemDelay; a negative value disables the delay.
	InterItemDelay time.Duration

	// RecoveryCap bounds how many documents Rebuild reads back.
	RecoveryCap int
}

// Result reports the outcome of one (re)vectorization.
type Result struct {
	EntityID           string        `json:"entity_id"`
	DocumentID         string        `json:"document_id,omitempty"`
	PreviousDocumentID string        `json:"previous_document_id,omitempty"`
	ContentLength      int           `json:"content_length"`
	ProcessingTime     time.Duration `json:"processing_time"`
	Success            bool          `json:"success"`
	Error              string        `json:"error,omitempty"`

	// Err is the underlying error for callers that need errors.Is.
	Err error `json:"-"`
}

// SearchOptions bound and filter Service.Search. The entity type clause is
// always added.
type SearchOptions struct {
	Limit  int
	Filter vector.Filter
}

// Stats summarizes the index and the store.
type Stats struct {
	VectorizedEntities   int     `json:"vectorized_entities"`
	StoredDocuments      int     `json:"stored_documents"`
	AverageContentLength float64 `json:"average_content_length"`
}

type indexEntry struct {
	documentID    string
	contentLength int
	vectorizedAt  time.Time
}

// Service owns vectorization of one entity type.
type Service struct {
	personas  persona.Store
	embedder  *embeddings.Provider
	store     *vector.Store
	publisher eventstream.Publisher
	config    Config
	logger    *slog.Logger

	mu    sync.RWMutex
	index map[string]indexEntry

	locks *keyedMutex
}

// NewService creates a Service. publisher may be nil.
func NewService(
	personas persona.Store,
	embedder *embeddings.Provider,
	store *vector.Store,
	publisher eventstream.Publisher,
	c Config,
	logger *slog.Logger,
) *Service {
	if c.EntityType == "" {
		c.EntityType = persona.EntityType
	}
	if c.InterItemDelay == 0 {
		c.InterItemDelay = DefaultInterItemDelay
	}
	if c.RecoveryCap <= 0 {
		c.RecoveryCap = DefaultRecoveryCap
	}

	return &Service{
		personas:  personas,
		embedder:  embedder,
		store:     store,
		publisher: publisher,
		config:    c,
		logger:    logger,
		index:     make(map[string]indexEntry),
		locks:     newKeyedMutex(),
	}
}

// EntityType returns the configured entity type.
func (s *Service) EntityType() string {
	return s.config.EntityType
}

// Start rebuilds the index from the store.
func (s *Service) Start(ctx context.Context) error {
	return s.Rebuild(ctx)
}

// Vectorize embeds and stores the persona with id. When the persona was
// already vectorized, the previous document is deleted after the new one is
// stored so exactly one document stays tracked.
func (s *Service) Vectorize(ctx context.Context, id string) Result {
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.vectorize(ctx, id, false)
}

// Revectorize deletes the tracked document (if any) and vectorizes again.
func (s *Service) Revectorize(ctx context.Context, id string) Result {
	unlock := s.locks.Lock(id)
	defer unlock()

	start := time.Now()

	s.mu.Lock()
	prev, tracked := s.index[id]
	delete(s.index, id)
	s.mu.Unlock()

	if tracked {
		if err := s.store.Delete(ctx, prev.documentID); err != nil {
			s.mu.Lock()
			if _, replaced := s.index[id]; !replaced {
				s.index[id] = prev
			}
			s.mu.Unlock()
			return failure(id, start, fmt.Errorf("deleting previous document: %w", err))
		}
	}

	r := s.vectorize(ctx, id, true)
	if tracked {
		r.PreviousDocumentID = prev.documentID
	}
	return r
}

func (s *Service) vectorize(ctx context.Context, id string, revectorized bool) Result {
	start := time.Now()

	if id == "" {
		return failure(id, start, fmt.Errorf("%w: entity id is required", errdefs.ErrInvalidInput))
	}
	// id becomes an index key that outlives the caller's buffer.
	id = strings.Clone(id)

	p, err := s.personas.Load(ctx, id)
	if err != nil {
		return failure(id, start, fmt.Errorf("loading %s: %w", s.config.EntityType, err))
	}
	if p == nil {
		return failure(id, start, &errdefs.NotFoundError{Kind: s.config.EntityType, ID: id})
	}

	content := BuildContent(p)
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return failure(id, start, fmt.Errorf("embedding content: %w", err))
	}

	now := time.Now().UTC()
	docID, err := s.store.Store(ctx, vector.Document{
		Content:   content,
		Embedding: embedding,
		Metadata:  s.metadata(p, len(content), now),
	})
	if err != nil {
		return failure(id, start, fmt.Errorf("storing document: %w", err))
	}

	s.mu.Lock()
	prev, hadPrev := s.index[id]
	s.index[id] = indexEntry{documentID: docID, contentLength: len(content), vectorizedAt: now}
	s.mu.Unlock()

	result := Result{
		EntityID:      id,
		DocumentID:    docID,
		ContentLength: len(content),
		Success:       true,
	}

	if hadPrev && prev.documentID != docID {
		result.PreviousDocumentID = prev.documentID
		if err := s.store.Delete(ctx, prev.documentID); err != nil {
			s.logger.Warn("failed to delete replaced document",
				"entity_id", id,
				"document_id", prev.documentID,
				"error", err,
			)
		}
	}

	result.ProcessingTime = time.Since(start)

	s.logger.Info("vectorized entity",
		"entity_type", s.config.EntityType,
		"entity_id", id,
		"document_id", docID,
		"content_length", len(content),
		"duration", result.ProcessingTime,
	)

	s.publish(ctx, result, revectorized)
	return result
}

func (s *Service) metadata(p *persona.Persona, contentLength int, at time.Time) map[string]any {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		vector.MetadataType: s.config.EntityType,
		MetaEntityID:        p.ID,
		MetaName:            p.Name,
		MetaBase:            p.Base,
		MetaVariant:         p.Variant,
		MetaAuthor:          p.Author,
		MetaTags:            tags,
		MetaContentLength:   contentLength,
		MetaVectorizedAt:    at.Format(time.RFC3339Nano),
	}
}

func (s *Service) publish(ctx context.Context, r Result, revectorized bool) {
	if s.publisher == nil {
		return
	}

	event := eventstream.NewVectorizedEvent(s.config.EntityType, r.EntityID, r.DocumentID)
	event.PreviousDocumentID = r.PreviousDocumentID
	event.ContentLength = r.ContentLength
	event.DurationMs = r.ProcessingTime.Milliseconds()
	event.Revectorized = revectorized

	if err := s.publisher.PublishVectorized(ctx, event); err != nil {
		s.logger.Warn("failed to publish vectorized event",
			"entity_id", r.EntityID,
			"error", err,
		)
	}
}

// VectorizeAll vectorizes every persona in list order, one at a time,
// returning one result per persona and continuing past failures.
func (s *Service) VectorizeAll(ctx context.Context) ([]Result, error) {
	all, err := s.personas.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %ss: %w", s.config.EntityType, err)
	}

	results := make([]Result, 0, len(all))
	for i, p := range all {
		if p == nil {
			continue
		}
		if i > 0 && s.config.InterItemDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.config.InterItemDelay):
			}
		}

		r := s.Vectorize(ctx, p.ID)
		if !r.Success {
			s.logger.Warn("vectorization failed",
				"entity_id", p.ID,
				"error", r.Error,
			)
		}
		results = append(results, r)
	}

	return results, nil
}

// DocumentID returns the tracked document id for an entity.
func (s *Service) DocumentID(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.index[id]
	return e.documentID, ok
}

// Vector returns the stored embedding for an entity, or nil when it has not
// been vectorized.
func (s *Service) Vector(ctx context.Context, id string) ([]float32, error) {
	docID, ok := s.DocumentID(id)
	if !ok {
		return nil, nil
	}

	doc, err := s.store.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return doc.Embedding, nil
}

// Search embeds query and searches documents of the entity type.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]vector.QueryResult, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	filter := vector.Filter{
		Match: map[string]string{vector.MetadataType: s.config.EntityType},
		AnyOf: opts.Filter.AnyOf,
	}
	for k, v := range opts.Filter.Match {
		if k != vector.MetadataType {
			filter.Match[k] = v
		}
	}

	return s.store.Search(ctx, embedding, vector.SearchOptions{Limit: opts.Limit, Filter: filter})
}

// Rebuild reconstructs the index from documents of the entity type in the
// store, using the embedded entity type name as the query vector. When an
// entity has several documents the most recently vectorized one wins.
func (s *Service) Rebuild(ctx context.Context) error {
	hits, err := s.Search(ctx, s.config.EntityType, SearchOptions{Limit: s.config.RecoveryCap})
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	index := make(map[string]indexEntry, len(hits))
	for _, h := range hits {
		id, _ := h.Metadata[MetaEntityID].(string)
		if id == "" {
			continue
		}
		at, _ := time.Parse(time.RFC3339Nano, fmt.Sprint(h.Metadata[MetaVectorizedAt]))
		if cur, ok := index[id]; ok && !at.After(cur.vectorizedAt) {
			continue
		}
		index[id] = indexEntry{
			documentID:    h.ID,
			contentLength: len(h.Content),
			vectorizedAt:  at,
		}
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()

	s.logger.Info("rebuilt vectorization index",
		"entity_type", s.config.EntityType,
		"entities", len(index),
		"documents_scanned", len(hits),
	)
	return nil
}

// Stats reports index and store sizes.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	st := Stats{VectorizedEntities: len(s.index)}
	total := 0
	for _, e := range s.index {
		total += e.contentLength
	}
	s.mu.RUnlock()

	if st.VectorizedEntities > 0 {
		st.AverageContentLength = float64(total) / float64(st.VectorizedEntities)
	}

	n, err := s.store.Count(ctx)
	if err != nil {
		return st, fmt.Errorf("counting documents: %w", err)
	}
	st.StoredDocuments = n
	return st, nil
}

func failure(id string, start time.Time, err error) Result {
	return Result{
		EntityID:       id,
		ProcessingTime: time.Since(start),
		Success:        false,
		Error:          err.Error(),
		Err:            err,
	}
}

// IsNotFound reports whether r failed because the entity does not exist.
func (r Result) IsNotFound() bool {
	return errors.Is(r.Err, errdefs.ErrNotFound)
}
