package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is the shared HTTP transport for one backend service. OrchClient and
// AuthnClient wrap it with typed operations.
type Client struct {
	mu         sync.RWMutex
	name       string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func newClient(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Name returns the service label used in error messages ("orch", "authn").
func (c *Client) Name() string { return c.name }

// Reconfigure updates the client's base URL and timeout for hot-reload.
// In-flight requests keep the http.Client they started with.
func (c *Client) Reconfigure(baseURL string, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	hc := *c.httpClient
	hc.Timeout = timeout
	c.httpClient = &hc
}

func (c *Client) transport() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.httpClient
}

// Ping reports whether the service answers HTTP at all. Any status code
// counts as reachable; only transport failures are returned.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/", nil)
	if err != nil {
		return fmt.Errorf("%s ping: %w", c.name, err)
	}
	resp, err := c.transport().Do(req)
	if err != nil {
		return fmt.Errorf("%s ping: %w", c.name, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// request is one backend call. Token is attached as a bearer credential only
// when non-empty.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	token  string
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	var bodyReader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s marshal: %w", c.name, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	u := c.BaseURL() + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: %w", c.name, r.method, r.path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	return req, nil
}

// call issues r and decodes the response envelope. Non-2xx responses come
// back as *Error; transport failures are wrapped plain errors.
func call[T any](ctx context.Context, c *Client, r request) (*Envelope[T], error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	resp, err := c.transport().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: %w", c.name, r.method, r.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromBody(resp.StatusCode, data)
	}

	env := &Envelope[T]{}
	if len(bytes.TrimSpace(data)) == 0 {
		env.Status = StatusSuccess
		return env, nil
	}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("%s decode %s: %w", c.name, r.path, err)
	}
	return env, nil
}
