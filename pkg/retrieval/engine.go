// Package retrieval ranks personas for a free-text query. Every public
// operation returns a tagged response (Success/Error) instead of an error so
// callers can branch on the outcome without exception handling.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
	"github.com/davidhonghikim/griot-sub000/pkg/persona"
	"github.com/davidhonghikim/griot-sub000/pkg/vector"
	"github.com/davidhonghikim/griot-sub000/pkg/vectorize"
)

const (
	DefaultLimit            = 10
	DefaultThreshold        = 0.5
	DefaultSnippetMaxLength = 200
	DefaultMaxSimilarity    = 0.8

	// DefaultEnsembleSize is used by the transports when a caller leaves
	// the ensemble size unset.
	DefaultEnsembleSize = 3

	selectBestLimit = 20
)

// Index is the vectorization surface the engine needs. *vectorize.Service
// implements it.
type Index interface {
	Search(ctx context.Context, query string, opts vectorize.SearchOptions) ([]vector.QueryResult, error)
	Revectorize(ctx context.Context, id string) vectorize.Result
	Stats(ctx context.Context) (vectorize.Stats, error)
}

// Config holds engine defaults.
type Config struct {
	DefaultLimit     int
	DefaultThreshold float64
	SnippetMaxLength int
	MaxSimilarity    float64
}

// PersonaFilter narrows retrieval by classification and tags.
type PersonaFilter struct {
	Base    string   `json:"base,omitempty"`
	Variant string   `json:"variant,omitempty"`
	Author  string   `json:"author,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Request is a retrieval query. Nil Limit and SimilarityThreshold use the
// engine defaults.
type Request struct {
	Query               string        `json:"query"`
	PersonaID           string        `json:"persona_id,omitempty"`
	Filter              PersonaFilter `json:"filter,omitempty"`
	Limit               *int          `json:"limit,omitempty"`
	SimilarityThreshold *float64      `json:"similarity_threshold,omitempty"`
}

// Result is one ranked persona.
type Result struct {
	PersonaID      string         `json:"persona_id"`
	Name           string         `json:"name"`
	RelevanceScore float64        `json:"relevance_score"`
	Content        string         `json:"content"`
	ContextSnippet string         `json:"context_snippet"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ProcessingTime time.Duration  `json:"processing_time"`
}

// Tags returns the persona tags carried in the result metadata.
func (r Result) Tags() []string {
	return vector.StringList(r.Metadata[vectorize.MetaTags])
}

// Base returns the persona base classification from the result metadata.
func (r Result) Base() string {
	s, _ := r.Metadata[vectorize.MetaBase].(string)
	return s
}

// Response is the tagged outcome of Query.
type Response struct {
	Query            string        `json:"query"`
	Results          []Result      `json:"results"`
	TotalResults     int           `json:"total_results"`
	ProcessingTime   time.Duration `json:"processing_time"`
	SelectedPersona  *Result       `json:"selected_persona,omitempty"`
	AverageRelevance float64       `json:"average_relevance"`
	Success          bool          `json:"success"`
	Error            string        `json:"error,omitempty"`

	// Err is the underlying error for callers that need errors.Is.
	Err error `json:"-"`
}

// Engine implements retrieval and ranking over an Index.
type Engine struct {
	index    Index
	personas persona.Store
	config   Config
	logger   *slog.Logger
}

// NewEngine creates an engine. personas is used only by GetStats and may
// be nil.
func NewEngine(index Index, personas persona.Store, c Config, logger *slog.Logger) *Engine {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.DefaultThreshold == 0 {
		c.DefaultThreshold = DefaultThreshold
	}
	if c.SnippetMaxLength <= 0 {
		c.SnippetMaxLength = DefaultSnippetMaxLength
	}
	if c.MaxSimilarity <= 0 {
		c.MaxSimilarity = DefaultMaxSimilarity
	}
	return &Engine{index: index, personas: personas, config: c, logger: logger}
}

// Query embeds the query, searches personas matching the filter, drops hits
// under the similarity threshold and attaches a context snippet to each
// survivor.
func (e *Engine) Query(ctx context.Context, req Request) *Response {
	start := time.Now()
	resp := &Response{Query: req.Query, Results: []Result{}}

	if strings.TrimSpace(req.Query) == "" {
		return e.fail(resp, start, errdefs.ErrInvalidQuery)
	}

	limit := e.config.DefaultLimit
	if req.Limit != nil && *req.Limit > 0 {
		limit = *req.Limit
	}
	threshold := e.config.DefaultThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}

	hits, err := e.index.Search(ctx, req.Query, vectorize.SearchOptions{
		Limit:  limit,
		Filter: buildFilter(req.Filter),
	})
	if err != nil {
		return e.fail(resp, start, fmt.Errorf("searching personas: %w", err))
	}

	words := queryWords(req.Query)
	var total float64
	for _, h := range hits {
		score := float64(h.Score)
		if score < threshold {
			continue
		}

		hitStart := time.Now()
		r := Result{
			PersonaID:      metaString(h.Metadata, vectorize.MetaEntityID),
			Name:           metaString(h.Metadata, vectorize.MetaName),
			RelevanceScore: score,
			Content:        h.Content,
			ContextSnippet: ExtractSnippet(h.Content, words, e.config.SnippetMaxLength),
			Metadata:       h.Metadata,
		}
		r.ProcessingTime = time.Since(hitStart)

		resp.Results = append(resp.Results, r)
		total += score
	}

	resp.TotalResults = len(resp.Results)
	if resp.TotalResults > 0 {
		resp.AverageRelevance = total / float64(resp.TotalResults)
		resp.SelectedPersona = selectPersona(resp.Results, req.PersonaID)
	}
	resp.Success = true
	resp.ProcessingTime = time.Since(start)

	e.logger.Debug("retrieval query completed",
		"hits", len(hits),
		"results", resp.TotalResults,
		"threshold", threshold,
		"duration", resp.ProcessingTime,
	)
	return resp
}

func (e *Engine) fail(resp *Response, start time.Time, err error) *Response {
	resp.Success = false
	resp.Error = err.Error()
	resp.Err = err
	resp.ProcessingTime = time.Since(start)

	e.logger.Warn("retrieval query failed", "query", resp.Query, "error", err)
	return resp
}

func buildFilter(f PersonaFilter) vector.Filter {
	out := vector.Filter{Match: map[string]string{}}
	if f.Base != "" {
		out.Match[vectorize.MetaBase] = f.Base
	}
	if f.Variant != "" {
		out.Match[vectorize.MetaVariant] = f.Variant
	}
	if f.Author != "" {
		out.Match[vectorize.MetaAuthor] = f.Author
	}
	if len(f.Tags) > 0 {
		out.AnyOf = map[string][]string{vectorize.MetaTags: f.Tags}
	}
	return out
}

func selectPersona(results []Result, personaID string) *Result {
	if personaID != "" {
		for i := range results {
			if results[i].PersonaID == personaID {
				r := results[i]
				return &r
			}
		}
	}
	r := results[0]
	return &r
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func queryWords(query string) []string {
	return strings.Fields(strings.ToLower(query))
}
