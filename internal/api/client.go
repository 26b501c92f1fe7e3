package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Default configuration values.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "quantumchat-go"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Config configures an API client.
type Config struct {
	// BaseURL is the chat server root, e.g. "https://chat.example.com".
	BaseURL string
	// Token, when set, is sent as a bearer token on every request.
	Token string
	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
	// Retry overrides DefaultRetryConfig.
	Retry *RetryConfig
	// Logger receives retry diagnostics. Defaults to a no-op logger.
	Logger *zerolog.Logger
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
}

// Client talks to the chat server's directory and message endpoints.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	retry      *RetryConfig
	log        zerolog.Logger
}

// NewClient creates a client from an explicit configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		userAgent:  cfg.UserAgent,
		httpClient: cfg.HTTPClient,
		retry:      cfg.Retry,
		log:        zerolog.Nop(),
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.retry == nil {
		c.retry = DefaultRetryConfig()
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	}
	return c, nil
}

// Option configures a client created with New.
type Option func(*Config)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Config) {
		c.Token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithRetry sets the retry policy.
func WithRetry(retry *RetryConfig) Option {
	return func(c *Config) {
		c.Retry = retry
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = &log
	}
}

// New creates a client for baseURL using functional options.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := Config{BaseURL: baseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

// BaseURL returns the configured server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs a JSON request against path, retrying transient failures
// according to the client's RetryConfig. A non-nil result is decoded from
// the response body.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt >= c.retry.MaxRetries {
				return &NetworkError{Err: err, URL: url, Attempt: attempt + 1}
			}
			c.log.Debug().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("request failed, retrying")
			if werr := c.retry.Wait(ctx, attempt, 0); werr != nil {
				return werr
			}
			continue
		}

		if c.retry.ShouldRetry(attempt, resp.StatusCode) {
			retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"))
			drainAndClose(resp.Body)
			c.log.Debug().Int("status", resp.StatusCode).Str("url", url).Int("attempt", attempt+1).Msg("retryable status")
			if werr := c.retry.Wait(ctx, attempt, retryAfter); werr != nil {
				return werr
			}
			continue
		}

		return c.handle(resp, result)
	}
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) handle(resp *http.Response, result any) error {
	defer drainAndClose(resp.Body)

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp)
	}

	if result == nil {
		return nil
	}
	err := json.NewDecoder(resp.Body).Decode(result)
	if errors.Is(err, io.EOF) {
		// Empty 2xx body.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var errResp struct {
		Error     string `json:"error"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	if err := json.Unmarshal(body, &errResp); err == nil {
		apiErr.Message = errResp.Error
		if apiErr.Message == "" {
			apiErr.Message = errResp.Message
		}
		if errResp.RequestID != "" {
			apiErr.RequestID = errResp.RequestID
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return apiErr
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}
