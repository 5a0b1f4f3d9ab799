// Package api provides a client for the Xtherma cloud API (Fernportal).
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"xtherma_bridge/internal/types"
)

const (
	// DefaultBaseURL is the device endpoint of the cloud API.
	DefaultBaseURL = "https://fernportal.xtherma.de/api/device"

	// RateLimitInterval keeps polling under the published limit of
	// 1500 requests per day.
	RateLimitInterval = 61 * time.Second
)

// APIClient handles HTTP requests to the cloud API.
// The API is read only; writes are rejected.
type APIClient struct {
	baseURL    string
	serial     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAPIClient creates a new cloud API client for one device.
// The API key is sent as a bearer token on every request.
func NewAPIClient(baseURL, apiKey, serial string, timeout time.Duration, logger *slog.Logger) *APIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	token := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})

	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		serial:  serial,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: token,
				Base: &http.Transport{
					MaxIdleConns:        10,
					MaxIdleConnsPerHost: 5,
					IdleConnTimeout:     90 * time.Second,
				},
			},
		},
	}
}

// Connect is a no-op; the API is stateless.
func (c *APIClient) Connect(ctx context.Context) error {
	return nil
}

// Disconnect is a no-op.
func (c *APIClient) Disconnect() error {
	return nil
}

// UpdateInterval returns the fixed polling period.
func (c *APIClient) UpdateInterval() time.Duration {
	return RateLimitInterval
}

// MinPollSpacing keeps out-of-schedule refreshes under the rate limit.
func (c *APIClient) MinPollSpacing() time.Duration {
	return RateLimitInterval
}

// Write always fails: the cloud API does not accept settings.
func (c *APIClient) Write(ctx context.Context, key string, raw int) error {
	return types.ErrReadOnly
}

// doRequest performs an HTTP request and classifies failures into the
// transport error taxonomy.
func (c *APIClient) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", types.ErrGeneral, err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("API request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Error("API request timed out", "method", method, "path", path)
			return nil, fmt.Errorf("%w: %v", types.ErrTimeout, err)
		}
		c.logger.Error("Request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%w: %v", types.ErrGeneral, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: read body: %v", types.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: read body: %v", types.ErrGeneral, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Debug("API rate limited", "method", method, "path", path)
		return nil, types.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Non-2xx status", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &types.RestAPIError{Code: resp.StatusCode}
	}

	c.logger.Debug("API response", "method", method, "path", path, "bytes", len(data))

	return data, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
