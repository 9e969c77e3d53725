// Package client is a typed HTTP client for the griot API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/davidhonghikim/griot-sub000/api"
	"github.com/davidhonghikim/griot-sub000/pkg/generation"
	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
	"github.com/davidhonghikim/griot-sub000/pkg/vectorize"
)

// DefaultTimeout bounds every request. Generation can be slow on local
// backends so it is generous.
const DefaultTimeout = 2 * time.Minute

// Client talks to one griot API server.
type Client struct {
	target string
	http   *http.Client
}

// New creates a client for the API server at target.
func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}

	return &Client{
		target: strings.TrimRight(target, "/"),
		http:   &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// Target returns the API server URL.
func (c *Client) Target() string {
	return c.target
}

func (c *Client) Query(ctx context.Context, req generation.Request) (*generation.Response, error) {
	out := &generation.Response{}
	return out, c.do(ctx, http.MethodPost, "/v1/query", req, out)
}

func (c *Client) Search(ctx context.Context, req retrieval.Request) (*retrieval.Response, error) {
	out := &retrieval.Response{}
	return out, c.do(ctx, http.MethodPost, "/v1/personas/search", req, out)
}

func (c *Client) Best(ctx context.Context, req api.BestRequest) (*retrieval.SelectResponse, error) {
	out := &retrieval.SelectResponse{}
	return out, c.do(ctx, http.MethodPost, "/v1/personas/best", req, out)
}

func (c *Client) Ensemble(ctx context.Context, req api.EnsembleRequest) (*retrieval.EnsembleResponse, error) {
	out := &retrieval.EnsembleResponse{}
	return out, c.do(ctx, http.MethodPost, "/v1/personas/ensemble", req, out)
}

func (c *Client) Recommendations(ctx context.Context, req api.RecommendationsRequest) (*retrieval.RecommendationResponse, error) {
	out := &retrieval.RecommendationResponse{}
	return out, c.do(ctx, http.MethodPost, "/v1/personas/recommendations", req, out)
}

// Vectorize revectorizes one persona and waits for the result.
func (c *Client) Vectorize(ctx context.Context, id string) (*vectorize.Result, error) {
	out := &vectorize.Result{}
	return out, c.do(ctx, http.MethodPost, "/v1/personas/"+url.PathEscape(id)+"/vectorize", nil, out)
}

// VectorizeAll vectorizes every persona the server knows about.
func (c *Client) VectorizeAll(ctx context.Context) (*api.VectorizeAllResponse, error) {
	out := &api.VectorizeAllResponse{}
	return out, c.do(ctx, http.MethodPost, "/v1/personas/vectorize", nil, out)
}

// Refresh queues a background revectorization.
func (c *Client) Refresh(ctx context.Context, id string) (*api.RefreshResponse, error) {
	out := &api.RefreshResponse{}
	return out, c.do(ctx, http.MethodPost, "/v1/personas/"+url.PathEscape(id)+"/refresh", nil, out)
}

func (c *Client) Stats(ctx context.Context) (*retrieval.Stats, error) {
	out := &retrieval.Stats{}
	return out, c.do(ctx, http.MethodGet, "/v1/stats", nil, out)
}

func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	out := &api.HealthResponse{}
	return out, c.do(ctx, http.MethodGet, "/v1/backend/health", nil, out)
}

func (c *Client) Models(ctx context.Context) (*api.ModelsResponse, error) {
	out := &api.ModelsResponse{}
	return out, c.do(ctx, http.MethodGet, "/v1/backend/models", nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.target+path, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to griot API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed (HTTP %d): %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func errorMessage(data []byte) string {
	var er api.ErrorResponse
	if err := json.Unmarshal(data, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(data))
}
