// Package inmemory provides a brute-force, process-local vector driver.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/davidhonghikim/griot-sub000/pkg/vector"
)

// Driver keeps documents in insertion order and scores them with cosine
// similarity on every query.
type Driver struct {
	mu    sync.RWMutex
	docs  map[string]vector.Document
	order []string
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{docs: make(map[string]vector.Document)}
}

// Add implements vector.VectorDriver.
func (d *Driver) Add(_ context.Context, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		if _, ok := d.docs[doc.ID]; !ok {
			d.order = append(d.order, doc.ID)
		}
		d.docs[doc.ID] = clone(doc)
	}
	return nil
}

// Query implements vector.VectorDriver.
func (d *Driver) Query(_ context.Context, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	results := make([]vector.QueryResult, 0, len(d.order))
	for _, id := range d.order {
		doc := d.docs[id]
		if !opts.Filter.Matches(doc.Metadata) {
			continue
		}
		results = append(results, vector.QueryResult{
			Document: clone(doc),
			Score:    float32(vector.CosineSimilarity(embedding, doc.Embedding)),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Get implements vector.VectorDriver.
func (d *Driver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := d.docs[id]; ok {
			out = append(out, clone(doc))
		}
	}
	return out, nil
}

// Delete implements vector.VectorDriver.
func (d *Driver) Delete(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := d.docs[id]; ok {
			delete(d.docs, id)
			remove[id] = struct{}{}
		}
	}
	if len(remove) == 0 {
		return nil
	}

	kept := d.order[:0]
	for _, id := range d.order {
		if _, gone := remove[id]; !gone {
			kept = append(kept, id)
		}
	}
	d.order = kept
	return nil
}

// Count implements vector.VectorDriver.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs), nil
}

// Close implements vector.VectorDriver.
func (d *Driver) Close() error {
	return nil
}

func clone(doc vector.Document) vector.Document {
	out := doc
	out.Embedding = append([]float32(nil), doc.Embedding...)
	if doc.Metadata != nil {
		out.Metadata = make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

var _ vector.VectorDriver = (*Driver)(nil)
