// Package llm is a minimal client for OpenAI-compatible chat APIs
// (DeepSeek, OpenAI, or any proxy speaking the same wire format). It
// covers the three operations reqvibe needs: chat completions, model
// listing, and embeddings for the long-term requirement store.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/reqvibe/reqvibe/pkg/cache"
	"github.com/reqvibe/reqvibe/pkg/chat"
)

const (
	// DefaultBaseURL targets the DeepSeek API.
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultTimeout bounds every request. A stuck provider call would
	// otherwise stall the whole interaction pass.
	DefaultTimeout = 120 * time.Second

	// modelsCacheTTL is how long a models listing is served from cache.
	modelsCacheTTL = 5 * time.Minute

	modelsCacheKey = "models"
)

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
}

// Option configures a Client created with New.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client. The API key may be empty when the endpoint is an
// unauthenticated local proxy.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		cache:      cache.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChatCompletion runs one non-streaming chat turn.
func (c *Client) ChatCompletion(ctx context.Context, model string, msgs []chat.Message) (*ChatResult, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("chat completion requires at least one message")
	}

	var resp chatCompletionResponse
	err := c.post(ctx, "/v1/chat/completions", chatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	return &ChatResult{
		Model:        resp.Model,
		Message:      choice.Message,
		FinishReason: choice.FinishReason,
		Usage:        resp.Usage,
	}, nil
}

// ListModels returns the available model IDs, sorted. Listings are
// cached for five minutes; model catalogs change rarely and the sidebar
// asks often.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	v, err := c.cache.GetOrCompute(modelsCacheKey, modelsCacheTTL, func() (any, error) {
		var resp modelsResponse
		if err := c.get(ctx, "/v1/models", &resp); err != nil {
			return nil, err
		}

		models := resp.Data
		sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
		return models, nil
	})
	if err != nil {
		return nil, err
	}

	models, ok := v.([]Model)
	if !ok {
		return nil, fmt.Errorf("unexpected cached models type %T", v)
	}
	return models, nil
}

// Embed returns one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingsResponse
	err := c.post(ctx, "/v1/embeddings", embeddingsRequest{
		Model: model,
		Input: texts,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s: %s (status %d)", req.URL.Path, apiErr.Error.Message, resp.StatusCode)
		}
		return fmt.Errorf("%s: unexpected status %d", req.URL.Path, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
