// Package httpx is a rate-limited HTTP client with bounded exponential
// backoff and restartable pagination, shared by the bibliographic sources.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxAttempts is the retry budget per request, first attempt included.
	DefaultMaxAttempts = 8

	// DefaultBaseDelay is the wait before the first retry. It doubles on
	// every further retry.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps a single backoff wait.
	DefaultMaxDelay = 2 * time.Minute

	// DefaultRequestsPerSecond is the per-client request rate.
	DefaultRequestsPerSecond = 1.0

	// DefaultTimeout is the per-attempt HTTP timeout.
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 512
)

// Client performs requests with rate limiting and retry.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	userAgent   string
	log         *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the allowed requests per second. Zero or less disables
// rate limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithMaxAttempts sets the retry budget, first attempt included.
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the first retry delay and the cap on a single delay.
func WithBackoff(base, max time.Duration) ClientOption {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger used for attempt and retry messages.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a client with default limits.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		userAgent:   "citeq",
		log:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// MaxAttempts returns the configured retry budget.
func (c *Client) MaxAttempts() int {
	return c.maxAttempts
}

// Request is an outbound request. Body is resent on every attempt.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is a successful (2xx) response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetch issues a GET for url.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, URL: url, Headers: headers})
}

// Do issues req, retrying transport failures and every non-2xx status
// except 404 until the budget runs out.
//
// A 404 returns ErrNotFound after one attempt. A cancelled context returns
// the context error. Running out of attempts returns *ExhaustedRetriesError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	log := c.log.With(zap.String("method", method), zap.String("url", req.URL))

	var (
		attempts   int
		lastStatus int
		lastErr    error
	)

	resp, err := retry.DoWithData(
		func() (*Response, error) {
			attempts++
			lastStatus = 0

			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}

			log.Debug("http request", zap.Int("attempt", attempts))
			resp, err := c.once(ctx, method, req)
			if err != nil {
				var statusErr *StatusError
				if errors.As(err, &statusErr) {
					lastStatus = statusErr.StatusCode
				}
				lastErr = err
				return nil, err
			}
			return resp, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxAttempts)),
		retry.Delay(c.baseDelay),
		retry.MaxDelay(c.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return isRetryable(ctx, err)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("retrying http request",
				zap.Uint("attempt", n+1),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Error(err))
		}),
	)
	if err == nil {
		return resp, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if IsNotFound(lastErr) {
		return nil, fmt.Errorf("%s: %w", req.URL, ErrNotFound)
	}
	if lastErr == nil {
		lastErr = err
	}
	return nil, &ExhaustedRetriesError{
		URL:        req.URL,
		Attempts:   attempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

// once performs a single attempt.
func (c *Client) once(ctx context.Context, method string, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        req.URL,
			Body:       truncate(data, maxErrorBody),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// isRetryable reports whether a failed attempt should be retried. Only a
// 404 and a cancelled context stop the loop early.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !IsNotFound(err)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// FetchJSON GETs url and decodes the JSON body into v.
func (c *Client) FetchJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	resp, err := c.Fetch(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decoding response from %s: %w: %w", url, ErrDecode, err)
	}
	return nil
}

// PostJSON POSTs body as JSON to url and decodes the JSON response into v.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, URL: url, Headers: headers, Body: data})
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decoding response from %s: %w: %w", url, ErrDecode, err)
	}
	return nil
}
