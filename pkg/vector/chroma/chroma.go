// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/davidhonghikim/griot-sub000/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for griot embeddings.
	DefaultCollectionName = "griot"

	DefaultMaxRetries    = 5
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultMaxRetryDelay = 8 * time.Second

	// metaKey holds the JSON encoded original metadata. Chroma metadata only
	// supports scalars, so list values are also flattened into flag keys.
	metaKey = "_griot_meta"
	flagSep = "#"
)

// Driver implements vector.VectorDriver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	// MaxRetries bounds collection bootstrap attempts while Chroma starts.
	MaxRetries int

	// RetryDelay is the initial backoff, doubled per attempt up to
	// MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	HTTPClient *http.Client
}

// NewDriver connects to Chroma and gets or creates the collection,
// retrying with exponential backoff.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}
	if c.CollectionName == "" {
		c.CollectionName = DefaultCollectionName
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = DefaultMaxRetryDelay
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	d := &Driver{
		baseURL:        strings.TrimSuffix(c.URL, "/"),
		collectionName: c.CollectionName,
		httpClient:     httpClient,
		logger:         logger,
	}

	var (
		lastErr error
		delay   = c.RetryDelay
	)
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		id, err := d.getOrCreateCollection(context.Background())
		if err == nil {
			d.collectionID = id
			logger.Info("connected to Chroma",
				"url", c.URL,
				"collection", c.CollectionName,
				"collection_id", id,
			)
			return d, nil
		}

		lastErr = err
		logger.Warn("chroma not ready, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if attempt == c.MaxRetries {
			break
		}
		time.Sleep(delay)
		delay = min(delay*2, c.MaxRetryDelay)
	}

	return nil, fmt.Errorf("getting or creating collection %q after %d attempts: %w", c.CollectionName, c.MaxRetries, lastErr)
}

func (d *Driver) tenantURL(suffix string) string {
	return d.baseURL + "/api/v2/tenants/default_tenant/databases/default_database/collections" + suffix
}

func (d *Driver) collectionURL(op string) string {
	return d.tenantURL("/" + d.collectionID + "/" + op)
}

func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var collection chromaCollection
	err := d.do(ctx, http.MethodPost, d.tenantURL(""), chromaCreateCollectionRequest{
		Name:        d.collectionName,
		Metadata:    map[string]any{"hnsw:space": "cosine"},
		GetOrCreate: true,
	}, &collection)
	if err != nil {
		return "", err
	}
	if collection.ID == "" {
		return "", fmt.Errorf("chroma returned an empty collection id")
	}
	return collection.ID, nil
}

// do sends a JSON request and decodes the JSON response into out when out
// is non-nil. 5xx responses wrap vector.ErrConnection.
func (d *Driver) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", vector.ErrConnection, resp.StatusCode, string(b))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Add upserts documents with their embeddings.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
		Documents:  make([]string, len(docs)),
	}
	for i, doc := range docs {
		meta, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for doc %s: %w", doc.ID, err)
		}
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = meta
		req.Documents[i] = doc.Content
	}

	if err := d.do(ctx, http.MethodPost, d.collectionURL("upsert"), req, nil); err != nil {
		return fmt.Errorf("upserting documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", "count", len(docs))
	return nil
}

// Query finds the most similar documents matching opts.Filter.
func (d *Driver) Query(ctx context.Context, embedding []float32, opts vector.QueryOptions) ([]vector.QueryResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	var resp chromaQueryResponse
	err := d.do(ctx, http.MethodPost, d.collectionURL("query"), chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        limit,
		Where:           buildWhere(opts.Filter),
		Include:         []string{"metadatas", "documents", "distances", "embeddings"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	// Only one query embedding is sent, so only the first group is used.
	if len(resp.IDs) == 0 || len(resp.IDs[0]) == 0 {
		return nil, nil
	}

	ids := resp.IDs[0]
	results := make([]vector.QueryResult, 0, len(ids))
	for i, id := range ids {
		r := vector.QueryResult{Document: vector.Document{ID: id}}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			r.Metadata = decodeMetadata(resp.Metadatas[0][i])
		}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			r.Content = resp.Documents[0][i]
		}
		if len(resp.Embeddings) > 0 && i < len(resp.Embeddings[0]) {
			r.Embedding = resp.Embeddings[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			r.Score = 1 - resp.Distances[0][i]
		}
		results = append(results, r)
	}

	d.logger.Debug("queried chroma", "results", len(results))
	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resp chromaGetResponse
	err := d.do(ctx, http.MethodPost, d.collectionURL("get"), chromaGetRequest{
		IDs:     ids,
		Include: []string{"metadatas", "documents", "embeddings"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("getting documents: %w", err)
	}

	docs := make([]vector.Document, len(resp.IDs))
	for i, id := range resp.IDs {
		docs[i].ID = id
		if i < len(resp.Metadatas) {
			docs[i].Metadata = decodeMetadata(resp.Metadatas[i])
		}
		if i < len(resp.Documents) {
			docs[i].Content = resp.Documents[i]
		}
		if i < len(resp.Embeddings) {
			docs[i].Embedding = resp.Embeddings[i]
		}
	}
	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := d.do(ctx, http.MethodPost, d.collectionURL("delete"), chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma", "count", len(ids))
	return nil
}

// Count returns the number of documents in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.do(ctx, http.MethodGet, d.collectionURL("count"), nil, &n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}

func encodeMetadata(m map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	out := map[string]any{metaKey: string(raw)}
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
			out[k+flagSep+t] = true
		case bool, int, int64, float32, float64:
			out[k] = t
		default:
			for _, s := range vector.StringList(v) {
				out[k+flagSep+s] = true
			}
		}
	}
	return out, nil
}

func decodeMetadata(m map[string]any) map[string]any {
	if raw, ok := m[metaKey].(string); ok {
		var out map[string]any
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == metaKey || strings.Contains(k, flagSep) {
			continue
		}
		out[k] = v
	}
	return out
}

// buildWhere renders a Filter as a Chroma where clause.
func buildWhere(f vector.Filter) map[string]any {
	var clauses []map[string]any

	for _, k := range f.MatchKeys() {
		clauses = append(clauses, map[string]any{k: map[string]any{"$eq": f.Match[k]}})
	}

	for _, k := range f.AnyOfKeys() {
		var anyOf []map[string]any
		for _, v := range f.AnyOf[k] {
			anyOf = append(anyOf, map[string]any{k + flagSep + v: map[string]any{"$eq": true}})
		}
		if len(anyOf) == 1 {
			clauses = append(clauses, anyOf[0])
		} else {
			clauses = append(clauses, map[string]any{"$or": anyOf})
		}
	}

	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return map[string]any{"$and": clauses}
	}
}

var _ vector.VectorDriver = (*Driver)(nil)
