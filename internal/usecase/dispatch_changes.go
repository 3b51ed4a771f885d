package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventforge/eventforge/internal/adapter/metrics"
	"github.com/eventforge/eventforge/internal/domain"
)

const (
	defaultEnqueueAttempts = 3
	defaultEnqueueBackoff  = 1 * time.Second
	defaultDispatchBatch   = 500
	defaultCoalesceWindow  = 60 * time.Second
)

// DedupToken computes the coalescing key for a change observed at receipt.
// The floor is over wall-clock receipt time, not the entry's own timestamp:
// it groups bursts of arrival. A burst straddling a window boundary splits
// into two rebuilds.
func DedupToken(partition string, receipt time.Time, window time.Duration) string {
	w := int64(window / time.Second)
	if w <= 0 {
		w = int64(defaultCoalesceWindow / time.Second)
	}
	return fmt.Sprintf("%s:%d", partition, receipt.Unix()/w)
}

// DispatchChangesUseCase consumes the change log in strict sequence order
// per partition and emits one coalesced rebuild signal per dedup window
// into the deduplicating queue. A change entry is never silently lost: the
// cursor only advances once the window's signal is either enqueued or
// durably journaled for replay.
type DispatchChangesUseCase struct {
	store   domain.CanonicalStore
	queue   domain.SignalQueue
	journal domain.DispatchJournal
	logger  *slog.Logger
	metrics *metrics.PipelineMetrics

	partition string
	window    time.Duration
	batchSize int
	attempts  int
	backoff   time.Duration
	now       func() time.Time
}

// NewDispatchChangesUseCase creates the dispatcher. metrics may be nil in
// tests.
func NewDispatchChangesUseCase(
	store domain.CanonicalStore,
	queue domain.SignalQueue,
	journal domain.DispatchJournal,
	logger *slog.Logger,
	m *metrics.PipelineMetrics,
	partition string,
	window time.Duration,
) *DispatchChangesUseCase {
	if window <= 0 {
		window = defaultCoalesceWindow
	}
	return &DispatchChangesUseCase{
		store:     store,
		queue:     queue,
		journal:   journal,
		logger:    logger.With("component", "change_dispatcher"),
		metrics:   m,
		partition: partition,
		window:    window,
		batchSize: defaultDispatchBatch,
		attempts:  defaultEnqueueAttempts,
		backoff:   defaultEnqueueBackoff,
		now:       time.Now,
	}
}

// RunOnce drains one batch of change entries past the dispatch cursor and
// returns how many entries it handed off.
func (uc *DispatchChangesUseCase) RunOnce(ctx context.Context) (int, error) {
	cursor, err := uc.store.DispatchCursor(ctx, uc.partition)
	if err != nil {
		return 0, fmt.Errorf("read dispatch cursor: %w", err)
	}

	entries, err := uc.store.ReadChanges(ctx, uc.partition, cursor, uc.batchSize)
	if err != nil {
		return 0, fmt.Errorf("read change log: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	receipt := uc.now().UTC()
	signal := domain.RebuildSignal{
		Partition:   uc.partition,
		DedupToken:  DedupToken(uc.partition, receipt, uc.window),
		EnqueueTime: receipt,
	}

	if err := uc.enqueueWithRetry(ctx, signal); err != nil {
		if uc.metrics != nil {
			uc.metrics.DispatchFailures.Inc()
		}
		// Spill to the journal so the batch can be acknowledged without
		// losing the signal. If even that fails, the cursor stays put and
		// the store redrives the same entries next poll.
		if jerr := uc.journal.Write(ctx, signal); jerr != nil {
			return 0, fmt.Errorf("enqueue failed (%w) and journal spill failed: %w", err, jerr)
		}
		if uc.metrics != nil {
			uc.metrics.JournalSpillsTotal.Inc()
		}
		uc.logger.Warn("queue unavailable, rebuild signal journaled for replay",
			"dedup_token", signal.DedupToken, "error", err)
	}

	last := entries[len(entries)-1].Sequence
	if err := uc.store.AdvanceCursor(ctx, uc.partition, last); err != nil {
		// The signal is already out; re-delivery after a cursor failure
		// only produces a redundant signal the queue collapses.
		return 0, fmt.Errorf("advance dispatch cursor: %w", err)
	}

	uc.logger.Debug("dispatched change batch",
		"entries", len(entries), "through_sequence", last, "dedup_token", signal.DedupToken)
	return len(entries), nil
}

func (uc *DispatchChangesUseCase) enqueueWithRetry(ctx context.Context, signal domain.RebuildSignal) error {
	var lastErr error
	for i := 0; i < uc.attempts; i++ {
		accepted, err := uc.queue.Enqueue(ctx, signal)
		if err == nil {
			uc.countSignal(accepted)
			return nil
		}
		lastErr = err
		uc.logger.Warn("failed to enqueue rebuild signal, retrying",
			"attempt", i+1, "error", err)
		select {
		case <-time.After(uc.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// ReplayJournal pushes journaled signals back into the queue and truncates
// the journal on success.
func (uc *DispatchChangesUseCase) ReplayJournal(ctx context.Context) error {
	err := uc.journal.Replay(ctx, func(signal domain.RebuildSignal) error {
		accepted, err := uc.queue.Enqueue(ctx, signal)
		if err != nil {
			return err
		}
		uc.countSignal(accepted)
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal replay: %w", err)
	}
	if err := uc.journal.Truncate(ctx); err != nil {
		return fmt.Errorf("journal truncate after replay: %w", err)
	}
	return nil
}

// Start runs the dispatch loop until the context is canceled, polling the
// change log at interval and periodically replaying any journaled spills.
func (uc *DispatchChangesUseCase) Start(ctx context.Context, interval, replayInterval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	replay := time.NewTicker(replayInterval)
	defer replay.Stop()

	uc.logger.Info("change dispatcher started", "interval", interval, "window", uc.window)
	for {
		select {
		case <-ticker.C:
			if _, err := uc.RunOnce(ctx); err != nil {
				uc.logger.Error("dispatch batch failed", "error", err)
			}
		case <-replay.C:
			if err := uc.ReplayJournal(ctx); err != nil {
				uc.logger.Warn("journal replay failed, will retry", "error", err)
			}
		case <-ctx.Done():
			uc.logger.Info("change dispatcher stopping")
			return
		}
	}
}

func (uc *DispatchChangesUseCase) countSignal(accepted bool) {
	if uc.metrics == nil {
		return
	}
	outcome := "collapsed"
	if accepted {
		outcome = "enqueued"
	}
	uc.metrics.SignalsTotal.WithLabelValues(outcome).Inc()
}
