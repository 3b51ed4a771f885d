package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eventforge/eventforge/internal/domain"
)

// StaticPublisher implements domain.StaticPublisher by writing the static
// rendering input as a JSON document per partition. The document is written
// to a temp file in the same directory and renamed into place, so readers
// see either the previous complete document or the new one, never a partial
// write.
type StaticPublisher struct {
	dir    string
	logger *slog.Logger
}

// NewStaticPublisher creates the publisher and ensures its directory exists.
func NewStaticPublisher(dir string, logger *slog.Logger) (*StaticPublisher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create static artifact directory %s: %w", dir, err)
	}
	return &StaticPublisher{
		dir:    dir,
		logger: logger.With("component", "static_publisher"),
	}, nil
}

// PublishStatic atomically replaces the partition's document.
func (p *StaticPublisher) PublishStatic(ctx context.Context, partition string, doc domain.StaticDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal static document: %w", err)
	}

	final := filepath.Join(p.dir, partition+".json")
	tmp, err := os.CreateTemp(p.dir, partition+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write static document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync static document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close static document: %w", err)
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish static document: %w", err)
	}

	p.logger.Debug("static document published", "partition", partition, "days", len(doc.Days), "path", final)
	return nil
}

// Load reads the currently published document for a partition. Used by the
// API to serve the static rendering input.
func (p *StaticPublisher) Load(partition string) (*domain.StaticDocument, error) {
	data, err := os.ReadFile(filepath.Join(p.dir, partition+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read static document: %w", err)
	}
	var doc domain.StaticDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal static document: %w", err)
	}
	return &doc, nil
}
