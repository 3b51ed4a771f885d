package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/eventforge/eventforge/internal/domain"
)

// CanonicalRepository implements domain.CanonicalStore on PostgreSQL. The
// canonical set and its change log live in one database so every mutation
// and its change entry commit in the same transaction.
type CanonicalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCanonicalRepository creates a new PostgreSQL canonical store.
func NewCanonicalRepository(db *sql.DB, logger *slog.Logger) *CanonicalRepository {
	return &CanonicalRepository{db: db, logger: logger}
}

const canonicalColumns = `identity_key, source_kind, title, start_date, time_map, end_date,
	url, location_text, cost, categories, group_id, raw_source_id, hidden, duplicate_of, updated_at`

// Get performs a point lookup by identity key.
func (r *CanonicalRepository) Get(ctx context.Context, partition, identityKey string) (*domain.CanonicalEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_events WHERE partition_id = $1 AND identity_key = $2`,
		partition, identityKey)
	ev, err := scanCanonical(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get canonical event: %w", err)
	}
	return ev, nil
}

// Scan returns the full canonical set for a partition, ordered by identity
// key for stable iteration.
func (r *CanonicalRepository) Scan(ctx context.Context, partition string) ([]domain.CanonicalEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_events WHERE partition_id = $1 ORDER BY identity_key`,
		partition)
	if err != nil {
		return nil, fmt.Errorf("scan canonical events: %w", err)
	}
	defer rows.Close()

	var events []domain.CanonicalEvent
	for rows.Next() {
		ev, err := scanCanonical(rows)
		if err != nil {
			return nil, fmt.Errorf("scan canonical row: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// Upsert writes a canonical event and appends its change entry in the same
// transaction. A write that leaves the record content-identical commits
// nothing and appends nothing.
func (r *CanonicalRepository) Upsert(ctx context.Context, partition string, event domain.CanonicalEvent) (domain.ChangeKind, bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer txn.Rollback()

	row := txn.QueryRowContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_events
		 WHERE partition_id = $1 AND identity_key = $2 FOR UPDATE`,
		partition, event.IdentityKey)
	current, err := scanCanonical(row)
	kind := domain.ChangeInsert
	if err == nil {
		if current.ContentEquals(event) {
			return domain.ChangeUpdate, false, nil
		}
		kind = domain.ChangeUpdate
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("lock canonical event: %w", err)
	}

	timeMap, err := json.Marshal(event.TimeMap)
	if err != nil {
		return "", false, fmt.Errorf("marshal time map: %w", err)
	}

	_, err = txn.ExecContext(ctx, `
		INSERT INTO canonical_events (partition_id, identity_key, source_kind, title, start_date,
			time_map, end_date, url, location_text, cost, categories, group_id, raw_source_id,
			hidden, duplicate_of, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (partition_id, identity_key) DO UPDATE SET
			source_kind = EXCLUDED.source_kind,
			title = EXCLUDED.title,
			start_date = EXCLUDED.start_date,
			time_map = EXCLUDED.time_map,
			end_date = EXCLUDED.end_date,
			url = EXCLUDED.url,
			location_text = EXCLUDED.location_text,
			cost = EXCLUDED.cost,
			categories = EXCLUDED.categories,
			group_id = EXCLUDED.group_id,
			raw_source_id = EXCLUDED.raw_source_id,
			hidden = EXCLUDED.hidden,
			duplicate_of = EXCLUDED.duplicate_of,
			updated_at = EXCLUDED.updated_at`,
		partition, event.IdentityKey, string(event.SourceKind), event.Title, event.StartDate,
		timeMap, event.EndDate, event.URL, event.LocationText, event.Cost,
		pq.Array(event.Categories), event.GroupID, event.RawSourceID,
		event.Hidden, event.DuplicateOf, event.UpdatedAt)
	if err != nil {
		return "", false, fmt.Errorf("upsert canonical event: %w", err)
	}

	if err := appendChange(ctx, txn, partition, event.IdentityKey, kind); err != nil {
		return "", false, err
	}
	if err := txn.Commit(); err != nil {
		return "", false, err
	}
	return kind, true, nil
}

// Delete removes a canonical event, appending a delete change entry when the
// record existed.
func (r *CanonicalRepository) Delete(ctx context.Context, partition, identityKey string) (bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer txn.Rollback()

	res, err := txn.ExecContext(ctx,
		`DELETE FROM canonical_events WHERE partition_id = $1 AND identity_key = $2`,
		partition, identityKey)
	if err != nil {
		return false, fmt.Errorf("delete canonical event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	if err := appendChange(ctx, txn, partition, identityKey, domain.ChangeDelete); err != nil {
		return false, err
	}
	if err := txn.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// PurgeEndedBefore deletes events whose end date precedes the cutoff,
// appending one delete change entry per removed key.
func (r *CanonicalRepository) PurgeEndedBefore(ctx context.Context, partition, cutoffDate string) ([]string, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer txn.Rollback()

	rows, err := txn.QueryContext(ctx,
		`DELETE FROM canonical_events WHERE partition_id = $1 AND end_date < $2 RETURNING identity_key`,
		partition, cutoffDate)
	if err != nil {
		return nil, fmt.Errorf("purge ended events: %w", err)
	}

	var removed []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, err
		}
		removed = append(removed, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, nil
	}

	for _, key := range removed {
		if err := appendChange(ctx, txn, partition, key, domain.ChangeDelete); err != nil {
			return nil, err
		}
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	r.logger.Info("purged ended events", "partition", partition, "cutoff", cutoffDate, "count", len(removed))
	return removed, nil
}

// ReadChanges returns change entries strictly after the given sequence, in
// sequence order.
func (r *CanonicalRepository) ReadChanges(ctx context.Context, partition string, afterSequence int64, limit int) ([]domain.ChangeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, partition_id, canonical_key, change_kind, created_at
		FROM change_log
		WHERE partition_id = $1 AND sequence > $2
		ORDER BY sequence
		LIMIT $3`,
		partition, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("read change log: %w", err)
	}
	defer rows.Close()

	var entries []domain.ChangeEntry
	for rows.Next() {
		var e domain.ChangeEntry
		var kind string
		if err := rows.Scan(&e.Sequence, &e.Partition, &e.CanonicalKey, &kind, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Kind = domain.ChangeKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DispatchCursor returns the last durably handed-off change sequence, or
// zero when the partition has never been dispatched.
func (r *CanonicalRepository) DispatchCursor(ctx context.Context, partition string) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_sequence FROM dispatch_cursors WHERE partition_id = $1`, partition).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dispatch cursor: %w", err)
	}
	return seq, nil
}

// AdvanceCursor moves the dispatch cursor forward, never backward.
func (r *CanonicalRepository) AdvanceCursor(ctx context.Context, partition string, sequence int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_cursors (partition_id, last_sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (partition_id) DO UPDATE SET
			last_sequence = GREATEST(dispatch_cursors.last_sequence, EXCLUDED.last_sequence),
			updated_at = NOW()`,
		partition, sequence)
	if err != nil {
		return fmt.Errorf("advance dispatch cursor: %w", err)
	}
	return nil
}

func appendChange(ctx context.Context, txn *sql.Tx, partition, key string, kind domain.ChangeKind) error {
	_, err := txn.ExecContext(ctx,
		`INSERT INTO change_log (partition_id, canonical_key, change_kind, created_at) VALUES ($1, $2, $3, $4)`,
		partition, key, string(kind), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append change entry: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCanonical(row rowScanner) (*domain.CanonicalEvent, error) {
	var ev domain.CanonicalEvent
	var sourceKind string
	var timeMap []byte
	var categories pq.StringArray
	var duplicateOf sql.NullString
	err := row.Scan(&ev.IdentityKey, &sourceKind, &ev.Title, &ev.StartDate, &timeMap,
		&ev.EndDate, &ev.URL, &ev.LocationText, &ev.Cost, &categories,
		&ev.GroupID, &ev.RawSourceID, &ev.Hidden, &duplicateOf, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ev.SourceKind = domain.SourceKind(sourceKind)
	if len(timeMap) > 0 {
		if err := json.Unmarshal(timeMap, &ev.TimeMap); err != nil {
			return nil, fmt.Errorf("unmarshal time map: %w", err)
		}
	}
	ev.Categories = []string(categories)
	if duplicateOf.Valid {
		ev.DuplicateOf = duplicateOf.String
	}
	return &ev, nil
}
