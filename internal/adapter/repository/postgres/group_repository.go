package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/eventforge/eventforge/internal/domain"
)

// GroupRepository implements domain.GroupRepository on PostgreSQL.
type GroupRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGroupRepository creates a new PostgreSQL group repository.
func NewGroupRepository(db *sql.DB, logger *slog.Logger) *GroupRepository {
	return &GroupRepository{db: db, logger: logger}
}

// Put creates or replaces a group.
func (r *GroupRepository) Put(ctx context.Context, group domain.Group) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO groups (group_id, name, feed_url, categories, active, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (group_id) DO UPDATE SET
			name = EXCLUDED.name,
			feed_url = EXCLUDED.feed_url,
			categories = EXCLUDED.categories,
			active = EXCLUDED.active,
			timezone = EXCLUDED.timezone,
			updated_at = EXCLUDED.updated_at`,
		group.ID, group.Name, group.FeedURL, pq.Array(group.Categories),
		group.Active, group.Timezone, group.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store group: %w", err)
	}
	return nil
}

// Get returns a group by id, or domain.ErrNotFound.
func (r *GroupRepository) Get(ctx context.Context, id string) (*domain.Group, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT group_id, name, feed_url, categories, active, timezone, updated_at
		FROM groups WHERE group_id = $1`, id)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// List returns all groups, or only active ones when activeOnly is set.
func (r *GroupRepository) List(ctx context.Context, activeOnly bool) ([]domain.Group, error) {
	query := `SELECT group_id, name, feed_url, categories, active, timezone, updated_at FROM groups`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY group_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// SetActive pauses or resumes a group. Pausing only stops future
// collection; existing canonical events stay untouched.
func (r *GroupRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE groups SET active = $2, updated_at = NOW() WHERE group_id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set group active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a group registration.
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE group_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanGroup(row rowScanner) (*domain.Group, error) {
	var g domain.Group
	var categories pq.StringArray
	if err := row.Scan(&g.ID, &g.Name, &g.FeedURL, &categories, &g.Active, &g.Timezone, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Categories = []string(categories)
	return &g, nil
}
