package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eventforge/eventforge/internal/domain"
)

const (
	segmentPrefix = "segment-"
	filePerm      = 0644
)

// JournalRepository implements domain.DispatchJournal as a file-based,
// segment-rotated append log. Signals the dispatcher could not enqueue are
// written here and replayed once the queue recovers, so the dispatch cursor
// can advance without losing a rebuild trigger.
type JournalRepository struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentSize    int64
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*JournalRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory %s: %w", dir, err)
	}

	j := &JournalRepository{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "dispatch_journal"),
	}

	if err := j.openLatestSegment(); err != nil {
		return nil, err
	}

	return j, nil
}

// Write appends a signal to the current journal segment.
func (j *JournalRepository) Write(ctx context.Context, signal domain.RebuildSignal) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal signal for journal: %w", err)
	}
	data = append(data, '\n')

	if j.currentSegment == nil {
		if err := j.rotate(); err != nil {
			return err
		}
	}

	totalSize, err := j.calculateTotalSize()
	if err != nil {
		j.logger.Error("Failed to calculate total journal size", "error", err)
		return fmt.Errorf("could not verify journal disk space: %w", err)
	}
	if totalSize+int64(len(data)) > j.maxTotalSize {
		return fmt.Errorf("journal max total size exceeded (%d > %d)", totalSize, j.maxTotalSize)
	}

	n, err := j.currentSegment.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to journal segment: %w", err)
	}
	j.currentSize += int64(n)

	if j.currentSize >= j.maxSegmentSize {
		if err := j.rotate(); err != nil {
			j.logger.Error("Failed to rotate journal segment", "error", err)
		}
	}

	return nil
}

// Replay reads all journal segments in order and calls the handler for each
// signal. The handler returning an error stops the replay; already-handled
// signals are not removed until Truncate.
func (j *JournalRepository) Replay(ctx context.Context, handler func(signal domain.RebuildSignal) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentSegment != nil {
		j.currentSegment.Close()
		j.currentSegment = nil
	}

	segments, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		return nil
	}
	j.logger.Info("Starting journal replay", "segment_count", len(segments))

	for _, segmentPath := range segments {
		file, err := os.Open(segmentPath)
		if err != nil {
			return fmt.Errorf("failed to open segment %s for replay: %w", segmentPath, err)
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if ctx.Err() != nil {
				file.Close()
				return ctx.Err()
			}
			var signal domain.RebuildSignal
			if err := json.Unmarshal(scanner.Bytes(), &signal); err != nil {
				j.logger.Warn("Failed to unmarshal signal from journal, skipping", "error", err, "line", scanner.Text())
				continue
			}
			if err := handler(signal); err != nil {
				file.Close()
				j.logger.Error("Journal replay handler failed, stopping replay", "error", err)
				return fmt.Errorf("replay handler failed: %w", err)
			}
		}
		if err := scanner.Err(); err != nil {
			file.Close()
			return fmt.Errorf("error scanning segment %s: %w", segmentPath, err)
		}
		file.Close()
	}

	j.logger.Info("Journal replay completed")
	return nil
}

// Truncate removes all journal segment files.
func (j *JournalRepository) Truncate(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentSegment != nil {
		j.currentSegment.Close()
		j.currentSegment = nil
	}

	segments, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	for _, segmentPath := range segments {
		if err := os.Remove(segmentPath); err != nil {
			j.logger.Error("Failed to remove journal segment", "path", segmentPath, "error", err)
		}
	}

	return j.openLatestSegment()
}

func (j *JournalRepository) rotate() error {
	if j.currentSegment != nil {
		if err := j.currentSegment.Sync(); err != nil {
			j.logger.Error("Failed to sync journal segment before rotating", "error", err)
		}
		if err := j.currentSegment.Close(); err != nil {
			j.logger.Error("Failed to close journal segment before rotating", "error", err)
		}
		j.currentSegment = nil
	}

	segmentName := fmt.Sprintf("%s%d.log", segmentPrefix, time.Now().UnixNano())
	path := filepath.Join(j.dir, segmentName)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create new journal segment %s: %w", path, err)
	}

	j.currentSegment = f
	j.currentSize = 0
	return nil
}

func (j *JournalRepository) openLatestSegment() error {
	segments, err := j.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		return j.rotate()
	}

	latestSegmentPath := segments[len(segments)-1]
	stat, err := os.Stat(latestSegmentPath)
	if err != nil {
		return fmt.Errorf("failed to stat latest segment %s: %w", latestSegmentPath, err)
	}

	f, err := os.OpenFile(latestSegmentPath, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latestSegmentPath, err)
	}

	j.currentSegment = f
	j.currentSize = stat.Size()

	if j.currentSize >= j.maxSegmentSize {
		return j.rotate()
	}

	return nil
}

func (j *JournalRepository) getSortedSegments() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			segments = append(segments, filepath.Join(j.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (j *JournalRepository) calculateTotalSize() (int64, error) {
	var totalSize int64
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			info, err := entry.Info()
			if err != nil {
				return 0, err
			}
			totalSize += info.Size()
		}
	}
	return totalSize, nil
}

// Close ensures the current segment is closed gracefully.
func (j *JournalRepository) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.currentSegment != nil {
		return j.currentSegment.Close()
	}
	return nil
}
