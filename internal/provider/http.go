package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPConfig controls pacing and retries for an adapter's HTTP client.
type HTTPConfig struct {
	// RequestsPerSecond is the adapter's documented rate limit. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
}

// DefaultHTTPConfig is used by adapters when no override is configured.
var DefaultHTTPConfig = HTTPConfig{
	RequestsPerSecond: 5,
	Burst:             1,
	Timeout:           30 * time.Second,
	MaxRetries:        2,
	RetryBackoff:      500 * time.Millisecond,
}

// HTTPClient is a paced JSON client shared by the HTTP adapters.
type HTTPClient struct {
	name    string
	cfg     HTTPConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

func NewHTTPClient(name string, cfg HTTPConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPConfig.Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &HTTPClient{
		name:    name,
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger.With(zap.String("provider", name)),
	}
}

// GetJSON issues a GET request and decodes the JSON body into out.
// 404 is reported as a *StatusError without retrying; 429 as ErrRateLimited.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	return WithRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		err := c.getOnce(ctx, url, headers, out)
		if err != nil {
			c.logger.Debug("provider request failed", zap.String("url", redactURL(url)), zap.Error(err))
		}
		return err
	})
}

func (c *HTTPClient) getOnce(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return Permanent(fmt.Errorf("rate limiter %s: %w", c.name, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Permanent(err)
		}
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Permanent(fmt.Errorf("%s: %w", c.name, ErrRateLimited))
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Permanent(&StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// IsNotFound reports whether err is an HTTP 404 from the provider.
func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound
	}
	return false
}

func redactURL(url string) string {
	base, _, _ := strings.Cut(url, "?")
	return base
}
