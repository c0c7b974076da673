// Package relay forwards contact form submissions to a third-party form endpoint.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const formContentType = "application/x-www-form-urlencoded;charset=UTF-8"

// ErrNotConfigured indicates that no relay endpoint is set.
var ErrNotConfigured = errors.New("relay: endpoint is not configured")

// Config wires a Client.
type Config struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client posts form fields to the configured endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client. An empty endpoint yields a client whose Submit
// always returns ErrNotConfigured.
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" {
		parsed, err := url.Parse(endpoint)
		if err != nil || !parsed.IsAbs() {
			return nil, fmt.Errorf("relay: invalid endpoint %q", endpoint)
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{endpoint: endpoint, httpClient: httpClient, logger: logger}, nil
}

// Configured reports whether Submit can reach an endpoint.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != ""
}

// Submit sends the fields once. The response body is drained but never
// interpreted: any completed round trip counts as delivered.
func (c *Client) Submit(ctx context.Context, fields url.Values) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(fields.Encode()))
	if err != nil {
		return fmt.Errorf("relay: build request: %w", err)
	}
	request.Header.Set("Content-Type", formContentType)

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Error("form relay failed", zap.String("endpoint", c.endpoint), zap.Error(err))
		return fmt.Errorf("relay: submit: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	c.logger.Info("form relayed", zap.Int("status", response.StatusCode), zap.Int("fields", len(fields)))
	return nil
}
