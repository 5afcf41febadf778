// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Configuration constants for the completion endpoint.
const (
	// DefaultEndpoint is the DeepSeek chat completions URL.
	DefaultEndpoint = "https://api.deepseek.com/v1/chat/completions"

	// DefaultModel is the model sent when none is configured.
	DefaultModel = "deepseek-chat"

	// DefaultHeaderTimeout bounds the wait for response headers. The body
	// itself is only bounded by the request context.
	DefaultHeaderTimeout = 60 * time.Second

	// MaxErrorBodySize caps how much of an error response is read.
	// SECURITY: Prevents memory exhaustion from a hostile endpoint.
	MaxErrorBodySize = 64 * 1024

	userAgent = "sidechat/0.1.0"
)

// Error variables for common endpoint errors.
var (
	// ErrNotConfigured indicates no API key was supplied.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the endpoint or the local limiter refused the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account balance is exhausted.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// HTTPError is a non-2xx response from the endpoint.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("HTTP %d [%s]: %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("HTTP %d", e.Status)
	}
}

// Is maps well-known statuses to the package sentinels.
func (e *HTTPError) Is(target error) bool {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return target == ErrAuthFailed
	case http.StatusPaymentRequired:
		return target == ErrInsufficientCredits
	case http.StatusNotFound:
		return target == ErrModelNotFound
	case http.StatusTooManyRequests:
		return target == ErrRateLimited
	}
	return false
}

// ChatMessage is a single message in a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// ChatRequest is the body sent to the completion endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// apiErrorResponse is the error body returned by OpenAI-compatible APIs.
type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client opens streaming completion requests. It is safe for concurrent use;
// endpoint and model may be changed while requests are in flight.
type Client struct {
	mu       sync.RWMutex
	endpoint string
	model    string

	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient returns a client for endpoint using model. Empty arguments
// fall back to DefaultEndpoint and DefaultModel.
func NewClient(endpoint, model string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		endpoint:   endpoint,
		model:      model,
		httpClient: newStreamingClient(DefaultHeaderTimeout),
	}
}

// newStreamingClient builds an HTTP client without an overall timeout;
// streaming bodies are bounded by the request context.
func newStreamingClient(headerTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: headerTimeout,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// WithHTTPClient replaces the HTTP client. Tests use it for httptest servers.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithHeaderTimeout sets how long to wait for response headers.
func (c *Client) WithHeaderTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpClient = newStreamingClient(d)
	}
	return c
}

// WithRateLimit allows at most perMinute requests per minute with a burst
// of one. Zero or less disables the limiter.
func (c *Client) WithRateLimit(perMinute int) *Client {
	if perMinute <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	return c
}

// SetModel changes the model used by later requests.
func (c *Client) SetModel(model string) {
	if model == "" {
		return
	}
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

// Model returns the current model.
func (c *Client) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// SetEndpoint changes the URL used by later requests.
func (c *Client) SetEndpoint(endpoint string) {
	if endpoint == "" {
		return
	}
	c.mu.Lock()
	c.endpoint = endpoint
	c.mu.Unlock()
}

// Endpoint returns the current completion URL.
func (c *Client) Endpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// =============================================================================
// STREAMING REQUEST
// =============================================================================

// Stream sends content as a single user message and returns the event-stream
// body. The caller must close it. Cancelling ctx aborts the body read.
func (c *Client) Stream(ctx context.Context, apiKey, content string) (io.ReadCloser, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrNotConfigured
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}

	c.mu.RLock()
	endpoint, model := c.endpoint, c.model
	c.mu.RUnlock()

	bodyBytes, err := json.Marshal(ChatRequest{
		Model:    model,
		Messages: []ChatMessage{NewUserMessage(content)},
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setHeaders(req, apiKey)

	start := time.Now()
	log.Debug().
		Str("component", "cloud").
		Str("model", model).
		Str("key", KeyFingerprint(apiKey)).
		Msg("opening completion stream")

	resp, err := c.httpClient.Do(req)

	// SECURITY: Drop the credential from the request as soon as it is sent.
	req.Header.Del("Authorization")

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		herr := handleErrorResponse(resp.StatusCode, body)
		log.Error().
			Str("component", "cloud").
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Err(herr).
			Msg("completion request rejected")
		return nil, herr
	}

	log.Debug().
		Str("component", "cloud").
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("completion stream open")
	return resp.Body, nil
}

// setHeaders sets the headers for a streaming completion request.
func setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)
}

// handleErrorResponse converts a non-2xx response into an *HTTPError,
// keeping the API's own code and message when the body carries them.
func handleErrorResponse(statusCode int, body []byte) *HTTPError {
	herr := &HTTPError{Status: statusCode}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		herr.Message = apiErr.Error.Message
		if apiErr.Error.Code != nil {
			herr.Code = fmt.Sprint(apiErr.Error.Code)
		}
		return herr
	}

	herr.Message = strings.TrimSpace(string(body))
	if len(herr.Message) > 200 {
		herr.Message = herr.Message[:200] + "..."
	}
	return herr
}

// KeyFingerprint returns the first 8 hex characters of the key's SHA-256.
// SECURITY: Safe for logs; reveals nothing of the key itself.
func KeyFingerprint(apiKey string) string {
	if apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:4])
}
