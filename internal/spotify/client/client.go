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
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/tessro/spindle/internal/errors"
)

const (
	// BaseURL is the Spotify Web API base URL.
	BaseURL = "https://api.spotify.com/v1"

	// Retry configuration for transient errors
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
	maxRetryAfter = 30 * time.Second

	// Spotify's rolling window allows roughly this many calls per second
	// before it starts answering 429.
	defaultRate  = 10
	defaultBurst = 5

	trackCacheSize = 256
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is a Spotify Web API client.
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
	limiter    *rate.Limiter
	tracks     *lru.Cache[string, Track]
	logger     *log.Logger
	retryWait  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithRetryWait sets the base backoff between retries.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// New creates a new Spotify client.
func New(tokens TokenSource, opts ...Option) *Client {
	cache, _ := lru.New[string, Track](trackCacheSize)
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		baseURL:    BaseURL,
		limiter:    rate.NewLimiter(defaultRate, defaultBurst),
		tracks:     cache,
		logger:     log.New(io.Discard),
		retryWait:  baseRetryWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request to the Spotify API.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.request(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request to the Spotify API.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.request(ctx, http.MethodPost, path, body, result)
}

// Put performs a PUT request to the Spotify API.
func (c *Client) Put(ctx context.Context, path string, body any, result any) error {
	return c.request(ctx, http.MethodPut, path, body, result)
}

func (c *Client) request(ctx context.Context, method, path string, body any, result any) error {
	op := method + " " + stripQuery(path)

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var jsonBody []byte
	if body != nil {
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	fullURL := c.baseURL + path
	c.logger.Debug("request", "method", method, "url", fullURL, "body", string(jsonBody))

	// A POST that failed may still have been applied; only a 429, which
	// Spotify answers before doing anything, is safe to send again.
	retryable := method != http.MethodPost

	var (
		lastErr    error
		lastStatus int
		wait       time.Duration
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if wait == 0 {
				wait = c.retryWait * time.Duration(1<<(attempt-1))
			}
			c.logger.Debug("retrying", "op", op, "attempt", attempt, "wait", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait = 0
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+token)
		if jsonBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !retryable {
				return apperrors.Remote(op, 0, err)
			}
			lastErr, lastStatus = err, 0
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			if !retryable {
				return apperrors.Remote(op, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
			}
			lastErr, lastStatus = fmt.Errorf("failed to read response: %w", err), resp.StatusCode
			continue
		}

		c.logger.Debug("response", "op", op, "status", resp.StatusCode)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr, lastStatus = parseAPIError(resp.StatusCode, respBody), resp.StatusCode
			wait = retryAfter(resp.Header.Get("Retry-After"))
			continue
		case resp.StatusCode >= 500:
			if !retryable {
				return apperrors.Remote(op, resp.StatusCode, parseAPIError(resp.StatusCode, respBody))
			}
			lastErr, lastStatus = parseAPIError(resp.StatusCode, respBody), resp.StatusCode
			continue
		case resp.StatusCode >= 400:
			return apperrors.Remote(op, resp.StatusCode, parseAPIError(resp.StatusCode, respBody))
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("%s: failed to parse response: %w", op, err)
			}
		}
		return nil
	}

	return apperrors.Remote(op, lastStatus, fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr))
}

// APIError represents a Spotify API error response.
type APIError struct {
	ErrorInfo struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Reason  string `json:"reason,omitempty"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Spotify API error %d: %s", e.ErrorInfo.Status, e.ErrorInfo.Message)
}

func parseAPIError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorInfo.Message != "" {
		return &apiErr
	}
	apiErr.ErrorInfo.Status = status
	apiErr.ErrorInfo.Message = http.StatusText(status)
	return &apiErr
}

// IsNoActiveDeviceError checks if an error is a "no active device" error.
func IsNoActiveDeviceError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorInfo.Status == http.StatusNotFound
}

// IsPremiumRequiredError checks for the 403 Spotify answers playback
// commands from free accounts with.
func IsPremiumRequiredError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorInfo.Reason == "PREMIUM_REQUIRED"
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

func stripQuery(path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	return u.Path
}

// BuildURL builds a URL with query parameters.
func BuildURL(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}

	u, _ := url.Parse(path)
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
