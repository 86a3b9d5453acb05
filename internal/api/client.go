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

	"github.com/google/uuid"

	"github.com/crypter-io/crypter-go/internal/apierrors"
)

// UserHeader carries the requestor's user id.
const UserHeader = "X-Crypter-User"

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the initial delay between retries.
	DefaultRetryDelay = 1 * time.Second
)

// Client is the Crypter HTTP API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userID     *uuid.UUID
	retry      *RetryConfig
}

// Config holds the configuration for creating a new Client.
type Config struct {
	BaseURL string
	// UserID identifies the requestor. Nil makes the client anonymous.
	UserID     *uuid.UUID
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// RetryOn overrides DefaultRetryableOn.
	RetryOn func(statusCode int, code apierrors.Code) bool
}

// NewClient creates a new API client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apierrors.ErrMissingBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retry.BaseDelay = cfg.RetryDelay
	}
	if cfg.RetryOn != nil {
		retry.RetryableOn = cfg.RetryOn
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		userID:     cfg.UserID,
		retry:      retry,
	}, nil
}

// Option configures a Client built with New.
type Option func(*Config)

// WithBaseURL sets the server URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithUserID sets the requestor's user id.
func WithUserID(id uuid.UUID) Option {
	return func(c *Config) {
		c.UserID = &id
	}
}

// WithRetries sets the maximum number of retry attempts.
func WithRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = hc
	}
}

// New creates a new API client from options.
func New(opts ...Option) (*Client, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UserID returns the configured requestor id, or nil.
func (c *Client) UserID() *uuid.UUID {
	return c.userID
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Do performs an HTTP request with retry logic. body, if non-nil, is
// encoded as JSON; result, if non-nil, receives the decoded response.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		status, code, err := c.doOnce(ctx, method, path, payload, result)
		if err == nil {
			return nil
		}
		lastErr = err

		var netErr *apierrors.NetworkError
		switch {
		case errors.As(err, &netErr):
			if ctx.Err() != nil || attempt >= c.retry.MaxRetries {
				return lastErr
			}
		case status == 0:
			return lastErr
		case !c.retry.ShouldRetry(attempt, status, code):
			return lastErr
		}

		if err := c.retry.Wait(ctx, attempt); err != nil {
			return lastErr
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, result any) (int, apierrors.Code, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != nil {
		req.Header.Set(UserHeader, c.userID.String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", &apierrors.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := parseErrorResponse(resp)
		return apiErr.StatusCode, apiErr.Code, apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return 0, "", fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, "", nil
}

func parseErrorResponse(resp *http.Response) *apierrors.APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &apierrors.APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.ErrorCode != "" {
		apiErr.Code = apierrors.Code(errResp.ErrorCode)
		apiErr.Message = errResp.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
