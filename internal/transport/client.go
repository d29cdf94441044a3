// Package transport issues provider HTTP calls with retry, exponential
// backoff and jitter, and runs bounded-concurrency batches of them. It knows
// nothing about providers or message semantics.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/kalambet/llmcore/internal/llm"
)

const (
	defaultAttemptTimeout = 30 * time.Second
	defaultMaxRetries     = 3
	defaultBaseDelay      = 200 * time.Millisecond
)

// Jitter selects how much randomness is added to retry delays.
type Jitter int

const (
	JitterNone Jitter = iota
	// JitterFull adds up to a quarter of the delay, uniformly distributed.
	JitterFull
)

// RetryPolicy bounds how often and how patiently a call is retried.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Jitter     Jitter
}

// DefaultRetryPolicy returns three attempts starting at 200ms with full jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		Jitter:     JitterFull,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxRetries < 1 {
		return 1
	}
	return p.MaxRetries
}

// Request is one POST to a provider endpoint. Body is encoded as JSON.
type Request struct {
	URL    string
	Header http.Header
	Body   any
}

// Client executes Requests.
type Client struct {
	httpClient     *http.Client
	policy         RetryPolicy
	attemptTimeout time.Duration
	logger         *slog.Logger
	jitter         func(n int64) int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAttemptTimeout bounds each individual HTTP attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client with the given retry policy.
func New(policy RetryPolicy, opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{},
		policy:         policy,
		attemptTimeout: defaultAttemptTimeout,
		logger:         slog.Default(),
		jitter:         func(n int64) int64 { return rand.Int64N(n + 1) },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Policy returns the client's retry policy.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Do sends req, retrying on HTTP 429 and on network failures. Other non-2xx
// responses fail immediately with *llm.APIError. When every attempt was
// rate limited the error wraps llm.ErrRetriesExhausted.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	attempts := c.policy.attempts()
	var lastErr error
	for attempt := range attempts {
		data, err := c.doOnce(ctx, req, body)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Status != http.StatusTooManyRequests {
				return nil, err
			}
			c.logger.Warn("rate limit exceeded, retrying", "attempt", attempt+1, "max_attempts", attempts)
		} else {
			c.logger.Warn("network request failed", "attempt", attempt+1, "max_attempts", attempts, "error", err)
			if attempt == attempts-1 {
				return nil, err
			}
		}
		lastErr = err

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("%w (%d attempts): %w", llm.ErrRetriesExhausted, attempts, lastErr)
}

// backoff returns BaseDelay * 2^attempt plus jitter.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.policy.BaseDelay << attempt
	if c.policy.Jitter == JitterFull && delay > 0 {
		delay += time.Duration(c.jitter(int64(delay / 4)))
	}
	return delay
}

func (c *Client) doOnce(ctx context.Context, req Request, body []byte) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &llm.APIError{Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
