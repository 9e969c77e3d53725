package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/davidhonghikim/griot-sub000/pkg/generation"
	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
)

var (
	searchToolName    = "search_personas"
	searchDescription = "Semantic search over vectorized personas. Returns personas ranked by relevance to the query with a context snippet for each."

	selectToolName    = "select_persona"
	selectDescription = "Pick the single most relevant persona for a request, optionally excluding persona ids."

	ensembleToolName    = "persona_ensemble"
	ensembleDescription = "Assemble a team of relevant personas that are dissimilar from each other."

	recommendToolName    = "recommend_personas"
	recommendDescription = "Recommend a primary persona and alternatives for a user, with reasoning."

	askToolName    = "ask"
	askDescription = "Answer a question with retrieval-augmented generation using the most relevant personas as context."

	statsToolName    = "persona_stats"
	statsDescription = "Report how many personas are vectorized and stored."
)

// FilterInput narrows persona retrieval.
type FilterInput struct {
	Base    string   `json:"base,omitempty" jsonschema:"persona base classification"`
	Variant string   `json:"variant,omitempty" jsonschema:"persona variant"`
	Author  string   `json:"author,omitempty" jsonschema:"persona author"`
	Tags    []string `json:"tags,omitempty" jsonschema:"personas must carry at least one of these tags"`
}

func (f FilterInput) persona() retrieval.PersonaFilter {
	return retrieval.PersonaFilter{Base: f.Base, Variant: f.Variant, Author: f.Author, Tags: f.Tags}
}

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query     string      `json:"query" jsonschema:"the request to find personas for"`
	Limit     int         `json:"limit,omitempty" jsonschema:"maximum number of personas (default: 10)"`
	Threshold *float64    `json:"threshold,omitempty" jsonschema:"minimum relevance score in [0,1] (default: 0.5)"`
	Filter    FilterInput `json:"filter,omitempty" jsonschema:"optional classification filter"`
}

// PersonaHit is one persona in a tool result.
type PersonaHit struct {
	PersonaID string   `json:"persona_id"`
	Name      string   `json:"name"`
	Score     float64  `json:"score"`
	Tags      []string `json:"tags,omitempty"`
	Snippet   string   `json:"snippet"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string       `json:"query"`
	Results []PersonaHit `json:"results"`
	Count   int          `json:"count"`
}

func hit(r retrieval.Result) PersonaHit {
	return PersonaHit{
		PersonaID: r.PersonaID,
		Name:      r.Name,
		Score:     r.RelevanceScore,
		Tags:      r.Tags(),
		Snippet:   r.ContextSnippet,
	}
}

func hits(rs []retrieval.Result) []PersonaHit {
	out := make([]PersonaHit, 0, len(rs))
	for _, r := range rs {
		out = append(out, hit(r))
	}
	return out
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	s.config.Logger.Debug("MCP search request", "query", input.Query, "limit", input.Limit)

	req := retrieval.Request{
		Query:               input.Query,
		Filter:              input.Filter.persona(),
		SimilarityThreshold: input.Threshold,
	}
	if input.Limit > 0 {
		req.Limit = &input.Limit
	}

	resp := s.config.Service.Search(ctx, req)
	if !resp.Success {
		return toolError("Search failed: %s", resp.Error), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:   resp.Query,
		Results: hits(resp.Results),
		Count:   resp.TotalResults,
	}
	return structured(output)
}

// SelectInput represents the input arguments for the select tool.
type SelectInput struct {
	Query     string      `json:"query" jsonschema:"the request to pick a persona for"`
	Exclude   []string    `json:"exclude,omitempty" jsonschema:"persona ids to skip"`
	Threshold *float64    `json:"threshold,omitempty" jsonschema:"minimum relevance score in [0,1]"`
	Filter    FilterInput `json:"filter,omitempty" jsonschema:"optional classification filter"`
}

// SelectOutput represents the output of the select tool.
type SelectOutput struct {
	Query   string      `json:"query"`
	Persona *PersonaHit `json:"persona,omitempty"`
}

func (s *Server) handleSelect(ctx context.Context, _ *mcp.CallToolRequest, input SelectInput) (*mcp.CallToolResult, SelectOutput, error) {
	resp := s.config.Service.SelectBestPersona(ctx, input.Query, retrieval.SelectOptions{
		Filter:          input.Filter.persona(),
		Threshold:       input.Threshold,
		ExcludePersonas: input.Exclude,
	})
	if !resp.Success {
		return toolError("Selection failed: %s", resp.Error), SelectOutput{}, nil
	}

	output := SelectOutput{Query: resp.Query}
	if resp.Persona != nil {
		h := hit(*resp.Persona)
		output.Persona = &h
	}
	return structured(output)
}

// EnsembleInput represents the input arguments for the ensemble tool.
type EnsembleInput struct {
	Query         string      `json:"query" jsonschema:"the request to assemble a team for"`
	Size          int         `json:"size,omitempty" jsonschema:"number of personas (default: 3)"`
	MaxSimilarity float64     `json:"max_similarity,omitempty" jsonschema:"maximum pairwise similarity between members (default: 0.8)"`
	Threshold     *float64    `json:"threshold,omitempty" jsonschema:"minimum relevance score in [0,1]"`
	Filter        FilterInput `json:"filter,omitempty" jsonschema:"optional classification filter"`
}

// EnsembleOutput represents the output of the ensemble tool.
type EnsembleOutput struct {
	Query      string       `json:"query"`
	Members    []PersonaHit `json:"members"`
	Candidates int          `json:"candidates"`
}

func (s *Server) handleEnsemble(ctx context.Context, _ *mcp.CallToolRequest, input EnsembleInput) (*mcp.CallToolResult, EnsembleOutput, error) {
	size := input.Size
	if size <= 0 {
		size = retrieval.DefaultEnsembleSize
	}

	resp := s.config.Service.GetPersonaEnsemble(ctx, input.Query, size, retrieval.EnsembleOptions{
		Filter:        input.Filter.persona(),
		Threshold:     input.Threshold,
		MaxSimilarity: input.MaxSimilarity,
	})
	if !resp.Success {
		return toolError("Ensemble failed: %s", resp.Error), EnsembleOutput{}, nil
	}

	return structured(EnsembleOutput{
		Query:      resp.Query,
		Members:    hits(resp.Members),
		Candidates: resp.Candidates,
	})
}

// RecommendInput represents the input arguments for the recommend tool.
type RecommendInput struct {
	Query   string   `json:"query" jsonschema:"the request to recommend personas for"`
	UserID  string   `json:"user_id,omitempty" jsonschema:"the user asking"`
	History []string `json:"history,omitempty" jsonschema:"the user's previous requests, oldest first"`
	Max     int      `json:"max,omitempty" jsonschema:"maximum number of recommendations (default: 3)"`
}

// Recommendation is one recommended persona with its reasoning.
type Recommendation struct {
	Persona   PersonaHit `json:"persona"`
	Reasoning string     `json:"reasoning,omitempty"`
}

// RecommendOutput represents the output of the recommend tool.
type RecommendOutput struct {
	Query        string           `json:"query"`
	Primary      *Recommendation  `json:"primary,omitempty"`
	Alternatives []Recommendation `json:"alternatives"`
}

func recommendation(r retrieval.Recommendation) Recommendation {
	return Recommendation{Persona: hit(r.Result), Reasoning: r.Reasoning}
}

func (s *Server) handleRecommend(ctx context.Context, _ *mcp.CallToolRequest, input RecommendInput) (*mcp.CallToolResult, RecommendOutput, error) {
	resp := s.config.Service.GetPersonaRecommendations(ctx, input.Query, input.UserID, retrieval.RecommendOptions{
		MaxRecommendations: input.Max,
		History:            input.History,
		IncludeReasoning:   true,
	})
	if !resp.Success {
		return toolError("Recommendation failed: %s", resp.Error), RecommendOutput{}, nil
	}

	output := RecommendOutput{Query: resp.Query, Alternatives: []Recommendation{}}
	if resp.Primary != nil {
		p := recommendation(*resp.Primary)
		output.Primary = &p
	}
	for _, alt := range resp.Alternatives {
		output.Alternatives = append(output.Alternatives, recommendation(alt))
	}
	return structured(output)
}

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Query     string      `json:"query" jsonschema:"the question to answer"`
	PersonaID string      `json:"persona_id,omitempty" jsonschema:"prefer this persona when it is retrieved"`
	Model     string      `json:"model,omitempty" jsonschema:"override the default generation model"`
	Filter    FilterInput `json:"filter,omitempty" jsonschema:"optional classification filter"`
}

// AskOutput represents the output of the ask tool.
type AskOutput struct {
	Query    string   `json:"query"`
	Model    string   `json:"model"`
	Response string   `json:"response"`
	Personas []string `json:"personas"`
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	resp := s.config.Service.Query(ctx, generation.Request{
		Query:     input.Query,
		PersonaID: input.PersonaID,
		Model:     input.Model,
		Filter:    input.Filter.persona(),
	})
	if !resp.Success {
		return toolError("Generation failed: %s", resp.Error), AskOutput{}, nil
	}

	output := AskOutput{
		Query:    resp.Query,
		Model:    resp.Model,
		Response: resp.Response,
		Personas: make([]string, 0, len(resp.RetrievedDocuments)),
	}
	for _, d := range resp.RetrievedDocuments {
		output.Personas = append(output.Personas, d.PersonaID)
	}
	return structured(output)
}

// StatsInput takes no arguments.
type StatsInput struct{}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, retrieval.Stats, error) {
	stats := s.config.Service.GetStats(ctx)
	if !stats.Success {
		return toolError("Stats failed: %s", stats.Error), retrieval.Stats{}, nil
	}
	return structured(*stats)
}

// structured returns output both as structured content and, for clients
// that only read text, as serialized JSON in a TextContent block.
func structured[T any](output T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		var zero T
		return toolError("Failed to serialize results: %v", err), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}
