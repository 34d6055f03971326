// Package wixapi is a small REST client for the booking platform's
// contacts, bookings and events APIs, authenticated per site instance.
package wixapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

var ErrCredentialsNotConfigured = errors.New("platform app credentials not configured")

// APIError is returned for non-2xx platform responses.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform api returned %d: %s", e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from the platform.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Config configures the client.
type Config struct {
	BaseURL   string
	TokenURL  string
	AppID     string
	AppSecret string
	Timeout   time.Duration
}

// Client calls the platform on behalf of installed site instances. Access
// tokens are fetched with the app's client credentials and reused per
// instance until they expire.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.wixapis.com"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = strings.TrimRight(cfg.BaseURL, "/") + "/oauth/access"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		sources:    make(map[string]oauth2.TokenSource),
	}
}

// Configured reports whether app credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.AppID != "" && c.cfg.AppSecret != ""
}

// TokenSource returns the cached token source for instanceID.
func (c *Client) TokenSource(instanceID string) oauth2.TokenSource {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.sources[instanceID]; ok {
		return ts
	}
	ts := oauth2.ReuseTokenSource(nil, &instanceTokenSource{client: c, instanceID: instanceID})
	c.sources[instanceID] = ts
	return ts
}

func (c *Client) do(ctx context.Context, instanceID, method, path string, in, out any) error {
	if !c.Configured() {
		return ErrCredentialsNotConfigured
	}

	token, err := c.TokenSource(instanceID).Token()
	if err != nil {
		return fmt.Errorf("obtaining access token: %w", err)
	}

	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", token.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("platform api error", "method", method, "path", path, "status", resp.StatusCode, "instance_id", instanceID)
		return &APIError{Status: resp.StatusCode, Body: truncate(string(payload), 512)}
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
