package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/pathflow/pkg/domain"
)

// KeyHTTP is the context key the HTTP provider writes to.
const KeyHTTP = "http"

// DefaultBaseURL matches the API mount point of the server package.
const DefaultBaseURL = "/api/v1"

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// HTTPClient performs JSON requests relative to a base URL.
type HTTPClient struct {
	BaseURL string
	Headers map[string]string
	client  *http.Client
}

// HTTPOption configures the HTTP provider.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTPClient) {
		if h.Headers == nil {
			h.Headers = make(map[string]string)
		}
		h.Headers[key] = value
	}
}

// HTTP attaches a shared HTTPClient under KeyHTTP as a transient key.
type HTTP struct {
	client *HTTPClient
}

// NewHTTP creates an HTTP provider for baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return &HTTP{client: c}
}

func (h *HTTP) Name() string { return "http" }

// Client returns the shared client.
func (h *HTTP) Client() *HTTPClient { return h.client }

func (h *HTTP) Provide(_ context.Context, rc *domain.Context, _ domain.Declaration, _ any) error {
	rc.SetTransient(KeyHTTP, h.client)
	return nil
}

// HTTPFrom returns the client attached to rc.
func HTTPFrom(rc *domain.Context) (*HTTPClient, bool) {
	v, ok := rc.Get(KeyHTTP)
	if !ok {
		return nil, false
	}
	c, ok := v.(*HTTPClient)
	return c, ok
}

// GetJSON issues a GET and decodes the JSON response into out (which may be nil).
func (c *HTTPClient) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// PostJSON encodes body as JSON, issues a POST and decodes the response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *HTTPClient) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.BaseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.url(path)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
