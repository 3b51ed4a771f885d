package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/eventforge/eventforge/internal/domain"
)

// ViewRepository implements domain.ViewPublisher on PostgreSQL. Each publish
// stages the full row set through a temp table with the COPY protocol, then
// swaps it in with a delete-and-insert inside one transaction, so readers
// only ever see a complete row set.
type ViewRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewViewRepository creates a new PostgreSQL view publisher.
func NewViewRepository(db *sql.DB, logger *slog.Logger) *ViewRepository {
	return &ViewRepository{db: db, logger: logger}
}

// PublishView atomically replaces the view rows for a partition.
func (r *ViewRepository) PublishView(ctx context.Context, partition string, viewRows []domain.ViewRow) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	tempTableName := "event_view_import"
	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE event_view INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return err
	}

	stmt, err := txn.Prepare(pq.CopyIn(tempTableName, "partition_id", "identity_key", "source_kind",
		"title", "start_date", "time_map", "end_date", "url", "location_text", "cost",
		"categories", "group_id"))
	if err != nil {
		return err
	}

	for _, row := range viewRows {
		timeMap, err := json.Marshal(row.TimeMap)
		if err != nil {
			_ = stmt.Close()
			return fmt.Errorf("marshal time map: %w", err)
		}
		_, err = stmt.ExecContext(ctx, partition, row.IdentityKey, string(row.SourceKind),
			row.Title, row.StartDate, timeMap, row.EndDate, row.URL, row.LocationText,
			row.Cost, pq.Array(row.Categories), row.GroupID)
		if err != nil {
			_ = stmt.Close()
			return err
		}
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	if _, err := txn.ExecContext(ctx, `DELETE FROM event_view WHERE partition_id = $1`, partition); err != nil {
		return fmt.Errorf("clear previous view: %w", err)
	}
	_, err = txn.ExecContext(ctx, `
		INSERT INTO event_view (partition_id, identity_key, source_kind, title, start_date,
			time_map, end_date, url, location_text, cost, categories, group_id)
		SELECT partition_id, identity_key, source_kind, title, start_date,
			time_map, end_date, url, location_text, cost, categories, group_id
		FROM `+tempTableName)
	if err != nil {
		return fmt.Errorf("swap in new view: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	r.logger.Debug("view published", "partition", partition, "rows", len(viewRows))
	return nil
}

// QueryView reads the published rows for a partition, optionally filtered to
// events overlapping [fromDate, toDate]. Empty bounds mean unbounded.
func (r *ViewRepository) QueryView(ctx context.Context, partition, fromDate, toDate string) ([]domain.ViewRow, error) {
	query := `
		SELECT identity_key, source_kind, title, start_date, time_map, end_date,
			url, location_text, cost, categories, group_id
		FROM event_view WHERE partition_id = $1`
	args := []interface{}{partition}
	if fromDate != "" {
		args = append(args, fromDate)
		query += fmt.Sprintf(" AND end_date >= $%d", len(args))
	}
	if toDate != "" {
		args = append(args, toDate)
		query += fmt.Sprintf(" AND start_date <= $%d", len(args))
	}
	query += " ORDER BY start_date, title, identity_key"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query view: %w", err)
	}
	defer rows.Close()

	var out []domain.ViewRow
	for rows.Next() {
		var row domain.ViewRow
		var sourceKind string
		var timeMap []byte
		var categories pq.StringArray
		err := rows.Scan(&row.IdentityKey, &sourceKind, &row.Title, &row.StartDate, &timeMap,
			&row.EndDate, &row.URL, &row.LocationText, &row.Cost, &categories, &row.GroupID)
		if err != nil {
			return nil, err
		}
		row.SourceKind = domain.SourceKind(sourceKind)
		if len(timeMap) > 0 {
			if err := json.Unmarshal(timeMap, &row.TimeMap); err != nil {
				return nil, fmt.Errorf("unmarshal time map: %w", err)
			}
		}
		row.Categories = []string(categories)
		out = append(out, row)
	}
	return out, rows.Err()
}
