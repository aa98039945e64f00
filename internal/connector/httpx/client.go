package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/dash/internal/utils"
)

// Config configures a Client for one upstream service.
type Config struct {
	// Service names the upstream in errors and logs (ex: "task-board").
	Service string

	// BaseURL is prefixed to every request path.
	BaseURL string

	// Auth attaches credentials to each request.
	Auth Auth

	// Headers are added to every request.
	Headers map[string]string

	// Timeout for individual requests (default: 15s).
	Timeout time.Duration

	// RateLimit requests per second (default: 10).
	RateLimit float64

	// RateBurst maximum burst size (default: 5).
	RateBurst int

	// Limiter, when set, replaces the per-client bucket built from
	// RateLimit and RateBurst (see Limiters).
	Limiter *rate.Limiter

	// MaxRetries on 429/5xx responses (default: 0).
	MaxRetries int

	// UserAgent string (default: "dash/1.0").
	UserAgent string

	// HTTPClient overrides the underlying client (tests, custom transports).
	HTTPClient *http.Client
}

// Client is a rate-limited JSON HTTP client for one upstream API.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client, filling in defaults.
func New(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}
	if config.UserAgent == "" {
		config.UserAgent = "dash/1.0"
	}
	if config.Auth == nil {
		config.Auth = NoAuth{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	limiter := config.Limiter
	if limiter == nil {
		limiter = NewLimiter(config.RateLimit, config.RateBurst)
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// Request is one call to the upstream API.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Do issues req and decodes a JSON response into out (if non-nil).
// Any status outside 2xx is returned as *APIError. Every attempt waits on
// the limiter.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body []byte
	err := Retry(ctx, c.config.MaxRetries, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limiter: %w", c.config.Service, err)
		}
		var err error
		body, err = c.doOnce(ctx, req)
		return err
	})
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.config.Service, err)
	}
	return nil
}

// Retry calls fn until it succeeds, fails with an error that is not a
// 429/5xx *APIError, or has been retried maxRetries times. Waits between
// attempts double from 100ms.
func Retry(ctx context.Context, maxRetries int, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !isRetryable(err) || attempt >= maxRetries {
			return err
		}

		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post performs a POST request with an optional JSON body.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Query: query, Body: body}, out)
}

// doOnce executes a single request attempt and returns the raw body.
func (c *Client) doOnce(ctx context.Context, req Request) ([]byte, error) {
	fullURL := strings.TrimSuffix(c.config.BaseURL, "/")
	if req.Path != "" {
		fullURL += "/" + strings.TrimPrefix(req.Path, "/")
	}
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal body: %w", c.config.Service, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.config.Service, err)
	}

	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	c.config.Auth.Apply(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: http request: %w", c.config.Service, err)
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", c.config.Service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewAPIError(c.config.Service, resp.StatusCode, body)
	}

	return body, nil
}

// isRetryable determines if an error should be retried.
func isRetryable(err error) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.IsRateLimited() || apiErr.IsServerError()
	}
	return false
}
