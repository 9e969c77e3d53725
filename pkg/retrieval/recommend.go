package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/davidhonghikim/griot-sub000/pkg/vectorize"
)

const DefaultMaxRecommendations = 3

// RecommendOptions configure GetPersonaRecommendations.
type RecommendOptions struct {
	MaxRecommendations int           `json:"max_recommendations,omitempty"`
	History            []string      `json:"history,omitempty"`
	IncludeReasoning   bool          `json:"include_reasoning,omitempty"`
	Filter             PersonaFilter `json:"filter,omitempty"`
	Threshold          *float64      `json:"threshold,omitempty"`
}

// Recommendation is a ranked persona with optional reasoning.
type Recommendation struct {
	Result
	Reasoning string `json:"reasoning,omitempty"`
}

// RecommendationResponse is the tagged outcome of GetPersonaRecommendations.
type RecommendationResponse struct {
	Query        string           `json:"query"`
	UserID       string           `json:"user_id,omitempty"`
	Primary      *Recommendation  `json:"primary,omitempty"`
	Alternatives []Recommendation `json:"alternatives"`
	Success      bool             `json:"success"`
	Error        string           `json:"error,omitempty"`
	Err          error            `json:"-"`
}

// GetPersonaRecommendations retrieves MaxRecommendations+1 personas for the
// query (extended with history when given); the first becomes Primary and
// the rest Alternatives.
func (e *Engine) GetPersonaRecommendations(ctx context.Context, query, userID string, opts RecommendOptions) *RecommendationResponse {
	max := opts.MaxRecommendations
	if max <= 0 {
		max = DefaultMaxRecommendations
	}

	text := query
	if len(opts.History) > 0 {
		text = strings.Join(append([]string{query}, opts.History...), " ")
	}

	limit := max + 1
	resp := e.Query(ctx, Request{
		Query:               text,
		Filter:              opts.Filter,
		Limit:               &limit,
		SimilarityThreshold: opts.Threshold,
	})

	out := &RecommendationResponse{
		Query:        query,
		UserID:       userID,
		Alternatives: []Recommendation{},
		Success:      resp.Success,
		Error:        resp.Error,
		Err:          resp.Err,
	}
	if !resp.Success {
		return out
	}

	words := queryWords(text)
	for i, r := range resp.Results {
		rec := Recommendation{Result: r}
		if opts.IncludeReasoning {
			rec.Reasoning = Reasoning(r, words)
		}
		if i == 0 {
			out.Primary = &rec
			continue
		}
		out.Alternatives = append(out.Alternatives, rec)
	}

	e.logger.Debug("persona recommendations",
		"user_id", userID,
		"results", len(resp.Results),
	)
	return out
}

// Reasoning renders a fixed explanation from the relevance percentage and
// the number of persona tags that appear among the query words.
func Reasoning(r Result, queryWords []string) string {
	words := lowerSet(queryWords)
	overlap := 0
	for t := range lowerSet(r.Tags()) {
		if _, ok := words[t]; ok {
			overlap++
		}
	}

	name := r.Name
	if name == "" {
		name = r.PersonaID
	}
	pct := int(math.Round(r.RelevanceScore * 100))

	switch overlap {
	case 0:
		return fmt.Sprintf("%s is a %d%% match for this request based on overall content similarity.", name, pct)
	case 1:
		return fmt.Sprintf("%s is a %d%% match for this request and 1 of its tags appears in your query.", name, pct)
	default:
		return fmt.Sprintf("%s is a %d%% match for this request and %d of its tags appear in your query.", name, pct, overlap)
	}
}

// UpdateEntityVectors revectorizes one persona.
func (e *Engine) UpdateEntityVectors(ctx context.Context, id string) vectorize.Result {
	r := e.index.Revectorize(ctx, id)
	if !r.Success {
		e.logger.Warn("updating persona vectors failed", "persona_id", id, "error", r.Error)
	}
	return r
}

// Stats summarizes the persona index.
type Stats struct {
	VectorizedPersonas   int     `json:"vectorized_personas"`
	TotalPersonas        int     `json:"total_personas"`
	StoredDocuments      int     `json:"stored_documents"`
	AverageContentLength float64 `json:"average_content_length"`
	Success              bool    `json:"success"`
	Error                string  `json:"error,omitempty"`
}

// GetStats reports vectorization coverage.
func (e *Engine) GetStats(ctx context.Context) *Stats {
	out := &Stats{}

	st, err := e.index.Stats(ctx)
	out.VectorizedPersonas = st.VectorizedEntities
	out.StoredDocuments = st.StoredDocuments
	out.AverageContentLength = st.AverageContentLength
	if err != nil {
		out.Error = err.Error()
		return out
	}

	if e.personas != nil {
		all, err := e.personas.List(ctx)
		if err != nil {
			out.Error = fmt.Sprintf("listing personas: %v", err)
			return out
		}
		out.TotalPersonas = len(all)
	}

	out.Success = true
	return out
}
