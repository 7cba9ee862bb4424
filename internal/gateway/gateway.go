// Package gateway is the single chokepoint for calls to the ticketing API.
// It attaches the bearer token, encodes and decodes JSON and turns every
// failure (HTTP or transport) into an *APIError.
package gateway

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
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Observer receives one callback per completed request. status is 0 for
// transport failures. *metrics.Recorder satisfies it.
type Observer interface {
	ObserveRequest(method, path string, status int, elapsed time.Duration)
}

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:5001/api".
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with Timeout is used.
	HTTPClient *http.Client
	// Timeout applies only when HTTPClient is nil. Zero means no timeout.
	Timeout time.Duration
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Observer is optional.
	Observer Observer
}

// Client performs API calls. It is safe for concurrent use and holds no
// session state: the token is passed per call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("gateway: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		observer:   cfg.Observer,
	}, nil
}

// Request performs method on path. body, when non-nil, is sent as JSON.
// token, when non-empty, is sent as a bearer credential.
//
// A 204 or an empty 2xx body returns (nil, nil). Any other failure is an
// *APIError.
func (c *Client) Request(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error) {
	started := time.Now()

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode %s %s body: %w", method, path, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("gateway: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, path, 0, started)
		c.logger.Warn("api request failed",
			"method", method, "path", path, "error", err.Error())
		return nil, &APIError{Method: method, Path: path, Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()
	c.observe(method, path, resp.StatusCode, started)

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode,
			Message: transportMessage(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp, payload),
		}
		c.logger.Debug("api error response",
			"method", method, "path", path, "status", resp.StatusCode, "message", apiErr.Message)
		return nil, apiErr
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	return json.RawMessage(payload), nil
}

func (c *Client) observe(method, path string, status int, started time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, path, status, time.Since(started))
	}
}

// errorMessage picks the server "message", then the server "error", then the
// status text, then the bare code.
func errorMessage(resp *http.Response, payload []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(payload, &envelope) == nil {
		if m := strings.TrimSpace(envelope.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(envelope.Error); m != "" {
			return m
		}
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("http error: status %d", resp.StatusCode)
}

func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// Decode unmarshals raw into a T. A nil raw (no content) yields the zero T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if raw == nil {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("gateway: malformed response: %w", err)
	}
	return out, nil
}
