// Package restlookup implements the policy and customer lookups over the
// services' JSON HTTP APIs.
package restlookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/claims-service/internal/application/port"
)

// CallerHeader names the calling service on every request
const CallerHeader = "X-Caller-Service"

const maxBodyBytes = 1 << 20

// Config holds the connection settings of one remote service
type Config struct {
	BaseURL       string
	CallerService string
	// Timeout bounds a whole request; the caller's context may end it sooner
	Timeout time.Duration
}

type client struct {
	baseURL string
	caller  string
	http    *http.Client
	logger  *zap.Logger
}

func newClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &client{
		baseURL: base,
		caller:  cfg.CallerService,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// getJSON issues a GET and decodes a 2xx body into out. A 404 maps to
// port.ErrLookupNotFound; everything else that fails maps to port.ErrLookupUnavailable.
func (c *client) getJSON(ctx context.Context, path string, out interface{}) error {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", port.ErrLookupUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.caller != "" {
		req.Header.Set(CallerHeader, c.caller)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Lookup request failed", zap.String("url", endpoint), zap.Error(err))
		return fmt.Errorf("%w: %v", port.ErrLookupUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", port.ErrLookupUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return port.ErrLookupNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Warn("Lookup returned unexpected status",
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", port.ErrLookupUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", port.ErrLookupUnavailable, err)
	}
	return nil
}
