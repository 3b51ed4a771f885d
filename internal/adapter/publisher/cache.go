package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// CacheInvalidator implements domain.CacheInvalidator against an HTTP purge
// endpoint. Each path is purged with one PURGE request; a zero-value base
// URL yields a no-op invalidator so deployments without an edge cache need
// no special casing.
type CacheInvalidator struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewCacheInvalidator creates the invalidator. baseURL may be empty.
func NewCacheInvalidator(baseURL string, client *http.Client, logger *slog.Logger) *CacheInvalidator {
	if client == nil {
		client = http.DefaultClient
	}
	return &CacheInvalidator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.With("component", "cache_invalidator"),
	}
}

// Invalidate purges the given paths. Any failed purge fails the whole call;
// callers treat that as stale-until-TTL, not as a rebuild failure.
func (c *CacheInvalidator) Invalidate(ctx context.Context, paths []string) error {
	if c.baseURL == "" {
		return nil
	}

	for _, path := range paths {
		target := c.baseURL + path
		if _, err := url.Parse(target); err != nil {
			return fmt.Errorf("invalid purge target %q: %w", target, err)
		}

		req, err := http.NewRequestWithContext(ctx, "PURGE", target, nil)
		if err != nil {
			return fmt.Errorf("build purge request: %w", err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("purge %s: %w", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("purge %s: unexpected status %d", path, resp.StatusCode)
		}
		c.logger.Debug("cache path purged", "path", path)
	}
	return nil
}
