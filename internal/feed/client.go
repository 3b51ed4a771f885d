// Package feed retrieves calendar feeds and turns them into raw entries
// for the normalizer: conditional HTTP fetch, ICS parsing, and recurrence
// expansion.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

// Client is the feed collector's entry point: fetch one group's feed,
// parse it, and expand recurrences into the given range.
type Client struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

func NewClient(fetcher *Fetcher, logger *slog.Logger) *Client {
	return &Client{
		fetcher: fetcher,
		logger:  logger.With("component", "feed_client"),
	}
}

// Load returns all raw entries for the group's feed within
// [rangeStart, rangeEnd].
func (c *Client) Load(ctx context.Context, group domain.Group, rangeStart, rangeEnd time.Time) ([]domain.RawFeedEntry, error) {
	res, err := c.fetcher.Fetch(ctx, group.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed for group %s: %w", group.ID, err)
	}

	parsed, err := Parse(res.Body, c.logger)
	if err != nil {
		return nil, fmt.Errorf("parse feed for group %s: %w", group.ID, err)
	}

	entries := Expand(parsed, rangeStart, rangeEnd, c.logger)
	c.logger.Debug("feed loaded",
		"group_id", group.ID,
		"from_cache", res.FromCache,
		"events", len(parsed),
		"occurrences", len(entries),
	)
	return entries, nil
}
