// Package github implements a client for the GitHub repository contents API.
// The attendance document lives as a single file in a repository, and every
// write becomes a commit tagged with a human-readable message.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/shared"
	"github.com/exportstafft-ui/intern-attendance/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com"

// ClientConfig contains configuration for the contents API client.
type ClientConfig struct {
	// BaseURL is the API base URL, without trailing slash
	BaseURL string

	// Owner and Repo identify the repository holding the document
	Owner string
	Repo  string

	// Branch is sent as ?ref= on reads and in the body of writes
	Branch string

	// Token is a personal access token with contents:write scope
	Token string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// MaxAttempts bounds retries of transient failures (5xx, rate limits, network)
	MaxAttempts int

	// UserAgent is required by GitHub
	UserAgent string

	// Logger for structured logging
	Logger *slog.Logger

	// Debug enables request logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(owner, repo string) ClientConfig {
	return ClientConfig{
		BaseURL:     DefaultBaseURL,
		Owner:       owner,
		Repo:        repo,
		Branch:      "main",
		Timeout:     15 * time.Second,
		MaxAttempts: 3,
		UserAgent:   "intern-attendance",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the GitHub contents API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
}

// NewClient creates a new contents API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.UserAgent == "" {
		config.UserAgent = "intern-attendance"
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  config.Logger,
		retrier: retry.GitHubRetrier(config.MaxAttempts),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithRetrier replaces the transient-failure retrier.
func (c *Client) WithRetrier(r *retry.Retrier) *Client {
	c.retrier = r
	return c
}

// Branch returns the configured branch.
func (c *Client) Branch() string {
	return c.config.Branch
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTENTS OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetContents fetches the file at path on the configured branch.
// A missing file yields an error matching shared.ErrNotFound.
func (c *Client) GetContents(ctx context.Context, path string) (*ContentsDTO, error) {
	endpoint := c.contentsPath(path)
	if c.config.Branch != "" {
		endpoint += "?" + url.Values{"ref": {c.config.Branch}}.Encode()
	}

	var dto ContentsDTO
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &dto); err != nil {
		return nil, fmt.Errorf("get contents %s: %w", path, err)
	}
	if dto.Type != "" && dto.Type != "file" {
		return nil, fmt.Errorf("get contents %s: path is a %s, not a file", path, dto.Type)
	}
	return &dto, nil
}

// PutContents creates or replaces the file at path.
// A stale or missing sha yields an error matching shared.ErrStaleWrite.
func (c *Client) PutContents(ctx context.Context, path string, req PutContentsRequest) (*PutContentsResponse, error) {
	if req.Branch == "" {
		req.Branch = c.config.Branch
	}

	var resp PutContentsResponse
	if err := c.doRequest(ctx, http.MethodPut, c.contentsPath(path), req, &resp); err != nil {
		return nil, fmt.Errorf("put contents %s: %w", path, err)
	}
	return &resp, nil
}

// Ping checks that the repository is reachable with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("/repos/%s/%s", url.PathEscape(c.config.Owner), url.PathEscape(c.config.Repo))
	return c.doSingleRequest(ctx, http.MethodGet, endpoint, nil, nil)
}

func (c *Client) contentsPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("/repos/%s/%s/contents/%s",
		url.PathEscape(c.config.Owner), url.PathEscape(c.config.Repo), strings.Join(segments, "/"))
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a request, retrying transient failures.
// Not-found and conflict responses are returned on the first attempt.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		err := c.doSingleRequest(ctx, method, path, body, result)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			var rl *RateLimitError
			if errors.As(err, &rl) {
				c.logger.Warn("github rate limited", "method", method, "path", path, "retry_after", rl.RetryAfter)
			}
			return retry.Retryable(err)
		}
		return retry.Permanent(err)
	})
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	if c.config.Debug {
		c.logger.Debug("github api request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shared.WrapError("github", method, shared.ErrTransport, "http request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.WrapError("github", method, shared.ErrTransport, "read response failed", err)
	}

	if rl := rateLimitFromResponse(resp, respBody); rl != nil {
		return rl
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return shared.WrapError("github", method, shared.ErrTransport, "unmarshal response failed", err)
		}
	}

	return nil
}

// rateLimitFromResponse recognizes both primary (403 + X-RateLimit-Remaining: 0)
// and secondary (429 or 403 + Retry-After) limits.
func rateLimitFromResponse(resp *http.Response, body []byte) *RateLimitError {
	limited := resp.StatusCode == http.StatusTooManyRequests
	if resp.StatusCode == http.StatusForbidden {
		limited = resp.Header.Get("Retry-After") != "" || resp.Header.Get("X-RateLimit-Remaining") == "0"
	}
	if !limited {
		return nil
	}

	retryAfter := 60 * time.Second
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil {
			retryAfter = time.Duration(seconds) * time.Second
		}
	} else if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			if d := time.Until(time.Unix(epoch, 0)); d > 0 {
				retryAfter = d
			}
		}
	}

	var apiErr APIError
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Message
	if msg == "" {
		msg = "rate limit exceeded"
	}
	return &RateLimitError{RetryAfter: retryAfter, Message: msg}
}

// isRetryable checks if an error is worth another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsServerError()
	}

	return errors.Is(err, shared.ErrTransport)
}
