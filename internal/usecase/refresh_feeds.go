package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eventforge/eventforge/internal/adapter/metrics"
	"github.com/eventforge/eventforge/internal/domain"
	"github.com/eventforge/eventforge/internal/merge"
	"github.com/eventforge/eventforge/internal/normalize"
)

// FeedLoader retrieves the raw entries for one group's feed.
type FeedLoader interface {
	Load(ctx context.Context, group domain.Group, rangeStart, rangeEnd time.Time) ([]domain.RawFeedEntry, error)
}

// RefreshFeedsUseCase runs one full collection cycle: fetch every active
// feed, normalize, merge overrides, and write the canonical set. Each feed
// runs in its own time-boxed goroutine so one hung upstream never blocks
// the cycle.
type RefreshFeedsUseCase struct {
	groups    domain.GroupRepository
	overrides domain.OverrideRepository
	store     domain.CanonicalStore
	loader    FeedLoader
	logger    *slog.Logger
	metrics   *metrics.PipelineMetrics

	partition    string
	fetchTimeout time.Duration
	retention    time.Duration
	horizon      time.Duration
	location     *time.Location
	now          func() time.Time
}

// NewRefreshFeedsUseCase creates the collection cycle usecase. metrics may
// be nil in tests.
func NewRefreshFeedsUseCase(
	groups domain.GroupRepository,
	overrides domain.OverrideRepository,
	store domain.CanonicalStore,
	loader FeedLoader,
	logger *slog.Logger,
	m *metrics.PipelineMetrics,
	partition string,
	fetchTimeout, retention, horizon time.Duration,
	location *time.Location,
) *RefreshFeedsUseCase {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &RefreshFeedsUseCase{
		groups:       groups,
		overrides:    overrides,
		store:        store,
		loader:       loader,
		logger:       logger.With("component", "refresh_feeds"),
		metrics:      m,
		partition:    partition,
		fetchTimeout: fetchTimeout,
		retention:    retention,
		horizon:      horizon,
		location:     location,
		now:          time.Now,
	}
}

type feedResult struct {
	group   domain.Group
	entries []domain.RawFeedEntry
	err     error
}

// Run executes one collection cycle. Per-feed failures are logged and
// skipped; the cycle only fails on store-level errors.
func (uc *RefreshFeedsUseCase) Run(ctx context.Context) error {
	now := uc.now().UTC()
	rangeStart := now.Add(-uc.retention)
	rangeEnd := now.Add(uc.horizon)

	groups, err := uc.groups.List(ctx, true)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	var feedGroups []domain.Group
	groupsByID := make(map[string]domain.Group, len(groups))
	for _, g := range groups {
		groupsByID[g.ID] = g
		if g.FeedURL != "" {
			feedGroups = append(feedGroups, g)
		}
	}

	results := make(chan feedResult, len(feedGroups))
	var wg sync.WaitGroup
	for _, g := range feedGroups {
		wg.Add(1)
		go func(g domain.Group) {
			defer wg.Done()
			feedCtx, cancel := context.WithTimeout(ctx, uc.fetchTimeout)
			defer cancel()
			entries, err := uc.loader.Load(feedCtx, g, rangeStart, rangeEnd)
			results <- feedResult{group: g, entries: entries, err: err}
		}(g)
	}
	wg.Wait()
	close(results)

	opts := normalize.Options{
		Reference: now,
		Retention: uc.retention,
		Horizon:   uc.horizon,
		Location:  uc.location,
	}

	var candidates []domain.EventCandidate
	for res := range results {
		if res.err != nil {
			uc.countFetch("error")
			uc.logger.Warn("feed fetch failed, skipping group this cycle",
				"group_id", res.group.ID, "error", res.err)
			continue
		}
		uc.countFetch("ok")

		group := res.group
		for _, entry := range res.entries {
			cand, err := normalize.Normalize(normalize.Input{Feed: &entry, Group: &group}, opts)
			if err != nil {
				var skipErr *normalize.SkipError
				if errors.As(err, &skipErr) {
					uc.countSkip(string(skipErr.Reason))
					uc.logger.Debug("entry skipped", "group_id", group.ID, "reason", skipErr.Reason, "detail", skipErr.Detail)
					continue
				}
				uc.logger.Warn("normalize failed", "group_id", group.ID, "error", err)
				continue
			}
			candidates = append(candidates, cand)
		}
	}

	overrides, err := uc.overrides.List(ctx, uc.partition)
	if err != nil {
		return fmt.Errorf("list overrides: %w", err)
	}

	merged := merge.MergeSet(candidates, overrides, groupsByID)
	for _, conflict := range merged.Conflicts {
		uc.logger.Warn("conflicting overrides for key, keeping latest",
			"identity_key", conflict.IdentityKey,
			"winner_updated_at", conflict.Winner.UpdatedAt,
			"loser_updated_at", conflict.Loser.UpdatedAt,
		)
		if uc.metrics != nil {
			uc.metrics.MergeConflictsTotal.Inc()
		}
	}
	if uc.metrics != nil {
		uc.metrics.OrphanOverridesGauge.Set(float64(len(merged.Orphans)))
	}

	var written int
	for _, ev := range merged.Canonical {
		ev.UpdatedAt = now
		kind, changed, err := uc.store.Upsert(ctx, uc.partition, ev)
		if err != nil {
			return fmt.Errorf("upsert canonical event %s: %w", ev.IdentityKey, err)
		}
		if changed {
			written++
			if uc.metrics != nil {
				uc.metrics.CanonicalWritesTotal.WithLabelValues(string(kind)).Inc()
			}
		}
	}

	if uc.retention > 0 {
		loc := uc.location
		if loc == nil {
			loc = time.UTC
		}
		cutoff := now.Add(-uc.retention).In(loc).Format(domain.DateLayout)
		purged, err := uc.store.PurgeEndedBefore(ctx, uc.partition, cutoff)
		if err != nil {
			return fmt.Errorf("purge expired events: %w", err)
		}
		if len(purged) > 0 {
			uc.logger.Info("purged expired events", "count", len(purged), "cutoff", cutoff)
			if uc.metrics != nil {
				uc.metrics.CanonicalWritesTotal.WithLabelValues(string(domain.ChangeDelete)).Add(float64(len(purged)))
			}
		}
	}

	uc.logger.Info("collection cycle complete",
		"feeds", len(feedGroups),
		"candidates", len(candidates),
		"written", written,
		"orphan_overrides", len(merged.Orphans),
	)
	return nil
}

func (uc *RefreshFeedsUseCase) countFetch(status string) {
	if uc.metrics != nil {
		uc.metrics.FeedFetchesTotal.WithLabelValues(status).Inc()
	}
}

func (uc *RefreshFeedsUseCase) countSkip(reason string) {
	if uc.metrics != nil {
		uc.metrics.EntriesSkippedTotal.WithLabelValues(reason).Inc()
	}
}
