package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eventforge/eventforge/internal/domain"
)

// SeedGroups registers the configured feed groups at startup. A group that
// already exists keeps its stored active flag, so a pause issued through the
// admin API survives collector restarts; name, feed URL, categories, and
// timezone still follow the seed file.
func SeedGroups(ctx context.Context, repo domain.GroupRepository, groups []domain.Group, logger *slog.Logger) error {
	for _, g := range groups {
		existing, err := repo.Get(ctx, g.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("look up group %s: %w", g.ID, err)
		}
		if existing != nil {
			g.Active = existing.Active
		}
		if err := repo.Put(ctx, g); err != nil {
			return fmt.Errorf("seed group %s: %w", g.ID, err)
		}
	}
	if len(groups) > 0 {
		logger.Info("feed groups seeded", "count", len(groups))
	}
	return nil
}
