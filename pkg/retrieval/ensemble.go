package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidhonghikim/griot-sub000/pkg/errdefs"
)

// SelectOptions configure SelectBestPersona.
type SelectOptions struct {
	Filter          PersonaFilter `json:"filter,omitempty"`
	Threshold       *float64      `json:"threshold,omitempty"`
	ExcludePersonas []string      `json:"exclude_personas,omitempty"`
}

// SelectResponse is the tagged outcome of SelectBestPersona. Persona is nil
// when nothing matched.
type SelectResponse struct {
	Query   string  `json:"query"`
	Persona *Result `json:"persona"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Err     error   `json:"-"`
}

// SelectBestPersona returns the top persona for query after removing the
// excluded ids.
func (e *Engine) SelectBestPersona(ctx context.Context, query string, opts SelectOptions) *SelectResponse {
	limit := selectBestLimit
	resp := e.Query(ctx, Request{
		Query:               query,
		Filter:              opts.Filter,
		Limit:               &limit,
		SimilarityThreshold: opts.Threshold,
	})

	out := &SelectResponse{Query: query, Success: resp.Success, Error: resp.Error, Err: resp.Err}
	if !resp.Success {
		return out
	}

	excluded := make(map[string]struct{}, len(opts.ExcludePersonas))
	for _, id := range opts.ExcludePersonas {
		excluded[id] = struct{}{}
	}
	for i := range resp.Results {
		if _, skip := excluded[resp.Results[i].PersonaID]; !skip {
			r := resp.Results[i]
			out.Persona = &r
			break
		}
	}
	return out
}

// EnsembleOptions configure GetPersonaEnsemble. A zero MaxSimilarity uses
// the engine default.
type EnsembleOptions struct {
	Filter        PersonaFilter `json:"filter,omitempty"`
	Threshold     *float64      `json:"threshold,omitempty"`
	MaxSimilarity float64       `json:"max_similarity,omitempty"`
}

// EnsembleResponse is the tagged outcome of GetPersonaEnsemble.
type EnsembleResponse struct {
	Query      string   `json:"query"`
	Members    []Result `json:"members"`
	Candidates int      `json:"candidates"`
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	Err        error    `json:"-"`
}

// GetPersonaEnsemble over-fetches size*3 candidates, keeps the top one and
// admits each following candidate only when its PairwiseSimilarity to every
// member already selected is below the maximum.
func (e *Engine) GetPersonaEnsemble(ctx context.Context, query string, size int, opts EnsembleOptions) *EnsembleResponse {
	out := &EnsembleResponse{Query: query, Members: []Result{}}
	if size <= 0 {
		err := fmt.Errorf("%w: ensemble size must be positive, got %d", errdefs.ErrInvalidInput, size)
		out.Error, out.Err = err.Error(), err
		return out
	}

	maxSim := opts.MaxSimilarity
	if maxSim <= 0 {
		maxSim = e.config.MaxSimilarity
	}

	limit := size * 3
	resp := e.Query(ctx, Request{
		Query:               query,
		Filter:              opts.Filter,
		Limit:               &limit,
		SimilarityThreshold: opts.Threshold,
	})
	if !resp.Success {
		out.Error, out.Err = resp.Error, resp.Err
		return out
	}

	out.Success = true
	out.Candidates = len(resp.Results)
	for _, c := range resp.Results {
		if len(out.Members) == size {
			break
		}
		if admit(c, out.Members, maxSim) {
			out.Members = append(out.Members, c)
		}
	}

	e.logger.Debug("persona ensemble selected",
		"candidates", out.Candidates,
		"members", len(out.Members),
		"max_similarity", maxSim,
	)
	return out
}

func admit(c Result, members []Result, maxSim float64) bool {
	for _, m := range members {
		if PairwiseSimilarity(c, m) >= maxSim {
			return false
		}
	}
	return true
}

// PairwiseSimilarity is the mean of the tag Jaccard similarity and an exact
// match indicator on the base classification.
func PairwiseSimilarity(a, b Result) float64 {
	base := 0.0
	if a.Base() != "" && strings.EqualFold(a.Base(), b.Base()) {
		base = 1
	}
	return (Jaccard(a.Tags(), b.Tags()) + base) / 2
}

// Jaccard returns |a ∩ b| / |a ∪ b| over case-folded values, or 0 when both
// are empty.
func Jaccard(a, b []string) float64 {
	setA := lowerSet(a)
	setB := lowerSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	inter := 0
	for v := range setA {
		if _, ok := setB[v]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func lowerSet(vals []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
