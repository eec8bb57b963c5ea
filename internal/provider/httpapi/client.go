// Package httpapi is the JSON-over-HTTP client shared by the model backend
// modules. It maps transport failures and HTTP statuses onto the provider
// error sentinels, so the chain's health tracking sees the same errors
// whatever the backend.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/flemzord/aura/internal/provider"
)

// maxErrorBody caps how much of an error reply is read into the error.
const maxErrorBody = 4096

// ErrorDecoder extracts a readable message from an error reply body. It
// returns "" when the body has no recognised shape.
type ErrorDecoder func(body []byte) string

// Client talks to one backend base URL.
type Client struct {
	name       string
	baseURL    string
	header     http.Header
	http       *http.Client
	authErrors bool
	decodeErr  ErrorDecoder
}

// Option configures a Client.
type Option func(*Client)

// WithBearer sends token in the Authorization header. Empty is a no-op.
func WithBearer(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithHeaders adds static headers to every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.header.Set(k, v)
		}
	}
}

// WithAuthErrors maps 401 and 403 to provider.ErrAuthentication. Backends
// without credentials leave it off, so those statuses stay plain errors.
func WithAuthErrors() Option {
	return func(c *Client) { c.authErrors = true }
}

// WithErrorDecoder sets how error bodies are summarised.
func WithErrorDecoder(d ErrorDecoder) Option {
	return func(c *Client) { c.decodeErr = d }
}

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for baseURL. name prefixes errors that are not
// mapped to a sentinel, e.g. "provider.ollama".
func New(name, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		header:  make(http.Header),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PostJSON posts in to path and decodes a 200 reply into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}
	return c.roundTrip(ctx, http.MethodPost, path, bytes.NewReader(payload), out)
}

// GetJSON decodes the 200 reply of a GET to path into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.roundTrip(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", provider.ErrProviderDown, err)
	}
	return nil
}

// Probe issues a GET to path and reports any status >= 400 as
// provider.ErrProviderDown. The health tracker only needs up or down.
func (c *Client) Probe(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.name, err)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: health check returned HTTP %d", provider.ErrProviderDown, resp.StatusCode)
	}
	return nil
}

// do sends req with the static headers. A failure caused by the caller's
// context is returned as the context error and never counts against the
// backend's health.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for k, vs := range c.header {
		req.Header[k] = vs
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return resp, nil
}

// statusError maps a non-200 reply to a sentinel.
func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	if c.decodeErr != nil {
		if m := c.decodeErr(raw); m != "" {
			msg = m
		}
	}

	code := resp.StatusCode
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, code, msg)
	case c.authErrors && (code == http.StatusUnauthorized || code == http.StatusForbidden):
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrAuthentication, code, msg)
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", c.name, code, msg)
	}
}
