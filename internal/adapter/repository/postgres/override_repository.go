package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/eventforge/eventforge/internal/domain"
)

// OverrideRepository implements domain.OverrideRepository on PostgreSQL.
// The patch is stored as a JSON document so override fields can grow without
// schema churn; last-write-wins resolution happens in SQL on updated_at.
type OverrideRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewOverrideRepository creates a new PostgreSQL override repository.
func NewOverrideRepository(db *sql.DB, logger *slog.Logger) *OverrideRepository {
	return &OverrideRepository{db: db, logger: logger}
}

// Put stores an override record. A stored record with a newer updated_at
// wins the conflict; the write is discarded and Put returns false.
func (r *OverrideRepository) Put(ctx context.Context, partition string, record domain.OverrideRecord) (bool, error) {
	patch, err := json.Marshal(record.Patch)
	if err != nil {
		return false, fmt.Errorf("marshal override patch: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO overrides (partition_id, identity_key, patch, categories, hidden, duplicate_of, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (partition_id, identity_key) DO UPDATE SET
			patch = EXCLUDED.patch,
			categories = EXCLUDED.categories,
			hidden = EXCLUDED.hidden,
			duplicate_of = EXCLUDED.duplicate_of,
			updated_at = EXCLUDED.updated_at
		WHERE overrides.updated_at <= EXCLUDED.updated_at`,
		partition, record.IdentityKey, patch, pq.Array(record.Categories),
		record.Hidden, record.DuplicateOf, record.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("store override: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store override: %w", err)
	}
	return affected > 0, nil
}

// Get returns the override for an identity key, or domain.ErrNotFound.
func (r *OverrideRepository) Get(ctx context.Context, partition, identityKey string) (*domain.OverrideRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT identity_key, patch, categories, hidden, duplicate_of, updated_at
		FROM overrides WHERE partition_id = $1 AND identity_key = $2`,
		partition, identityKey)
	rec, err := scanOverride(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get override: %w", err)
	}
	return rec, nil
}

// List returns all overrides for a partition.
func (r *OverrideRepository) List(ctx context.Context, partition string) ([]domain.OverrideRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT identity_key, patch, categories, hidden, duplicate_of, updated_at
		FROM overrides WHERE partition_id = $1 ORDER BY identity_key`,
		partition)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var records []domain.OverrideRecord
	for rows.Next() {
		rec, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan override row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanOverride(row rowScanner) (*domain.OverrideRecord, error) {
	var rec domain.OverrideRecord
	var patch []byte
	var categories pq.StringArray
	var hidden sql.NullBool
	var duplicateOf sql.NullString
	if err := row.Scan(&rec.IdentityKey, &patch, &categories, &hidden, &duplicateOf, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patch, &rec.Patch); err != nil {
		return nil, fmt.Errorf("unmarshal override patch: %w", err)
	}
	rec.Categories = []string(categories)
	if hidden.Valid {
		rec.Hidden = &hidden.Bool
	}
	if duplicateOf.Valid {
		rec.DuplicateOf = &duplicateOf.String
	}
	return &rec, nil
}
