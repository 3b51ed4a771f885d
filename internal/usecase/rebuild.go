package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventforge/eventforge/internal/adapter/metrics"
	"github.com/eventforge/eventforge/internal/artifact"
	"github.com/eventforge/eventforge/internal/domain"
)

// rebuildState tracks where a rebuild attempt is in its lifecycle. Failed
// is reachable from any state; recovery is redelivery, never in-place
// resumption.
type rebuildState string

const (
	stateIdle         rebuildState = "idle"
	stateFetching     rebuildState = "fetching"
	stateRegenerating rebuildState = "regenerating"
	statePublishing   rebuildState = "publishing"
	stateInvalidating rebuildState = "invalidating"
	stateFailed       rebuildState = "failed"
)

const (
	defaultRebuildTimeout = 900 * time.Second
	defaultMaxReceives    = 3
	defaultReceiveBlock   = 2 * time.Second
)

// RebuildUseCase regenerates and republishes all derived artifacts for a
// partition in response to one coalesced rebuild signal. Every attempt
// re-reads the full canonical set; no state survives between attempts, so
// redelivery is always safe.
type RebuildUseCase struct {
	store  domain.CanonicalStore
	queue  domain.SignalQueue
	view   domain.ViewPublisher
	static domain.StaticPublisher
	cache  domain.CacheInvalidator

	logger  *slog.Logger
	metrics *metrics.RebuildMetrics

	timeout     time.Duration
	maxReceives int64
	lease       time.Duration
	now         func() time.Time
}

// NewRebuildUseCase creates the rebuild worker usecase. metrics may be nil
// in tests.
func NewRebuildUseCase(
	store domain.CanonicalStore,
	queue domain.SignalQueue,
	view domain.ViewPublisher,
	static domain.StaticPublisher,
	cache domain.CacheInvalidator,
	logger *slog.Logger,
	m *metrics.RebuildMetrics,
	timeout time.Duration,
	maxReceives int64,
	lease time.Duration,
) *RebuildUseCase {
	if timeout <= 0 {
		timeout = defaultRebuildTimeout
	}
	if maxReceives <= 0 {
		maxReceives = defaultMaxReceives
	}
	return &RebuildUseCase{
		store:       store,
		queue:       queue,
		view:        view,
		static:      static,
		cache:       cache,
		logger:      logger.With("component", "rebuild_worker"),
		metrics:     m,
		timeout:     timeout,
		maxReceives: maxReceives,
		lease:       lease,
		now:         time.Now,
	}
}

// Handle runs one full rebuild for the signal's partition. Failures before
// or during publish are retryable because the rebuild is a pure function of
// current canonical state; only cache invalidation is allowed to fail
// without failing the rebuild.
func (uc *RebuildUseCase) Handle(ctx context.Context, signal *domain.RebuildSignal) error {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	started := uc.now()
	state := stateIdle
	log := uc.logger.With("partition", signal.Partition, "dedup_token", signal.DedupToken)

	fail := func(err error) error {
		failedIn := state
		state = stateFailed
		log.Error("rebuild failed", "state", string(failedIn), "error", err)
		uc.countRebuild("failed")
		return err
	}

	state = stateFetching
	events, err := uc.store.Scan(ctx, signal.Partition)
	if err != nil {
		return fail(fmt.Errorf("scan canonical store: %w", err))
	}

	state = stateRegenerating
	set := artifact.Build(events, uc.now())

	state = statePublishing
	if err := uc.view.PublishView(ctx, signal.Partition, set.ViewRows); err != nil {
		return fail(fmt.Errorf("publish view: %w", err))
	}
	if err := uc.static.PublishStatic(ctx, signal.Partition, set.Static); err != nil {
		return fail(fmt.Errorf("publish static input: %w", err))
	}

	state = stateInvalidating
	paths := []string{
		"/events/" + signal.Partition + ".json",
		"/calendar/" + signal.Partition,
	}
	if err := uc.cache.Invalidate(ctx, paths); err != nil {
		// Stale-until-TTL, not an inconsistency.
		log.Warn("cache invalidation failed, serving stale until TTL", "error", err)
		if uc.metrics != nil {
			uc.metrics.InvalidationFails.Inc()
		}
	}

	state = stateIdle
	elapsed := uc.now().Sub(started)
	uc.countRebuild("published")
	if uc.metrics != nil {
		uc.metrics.RebuildDuration.Observe(elapsed.Seconds())
	}
	log.Info("rebuild published",
		"events", len(events),
		"view_rows", len(set.ViewRows),
		"days", len(set.Static.Days),
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

// ProcessNext takes one signal from the queue, fresh or reclaimed from an
// expired lease, and runs the rebuild. It reports whether a signal was
// handled. A signal past the max receive count goes to the dead-letter
// stream instead of another attempt; a failed rebuild is left unacked so
// lease expiry redelivers it.
func (uc *RebuildUseCase) ProcessNext(ctx context.Context, consumer string) (bool, error) {
	signal, err := uc.queue.Receive(ctx, consumer, defaultReceiveBlock)
	if err != nil {
		return false, fmt.Errorf("receive signal: %w", err)
	}
	if signal == nil {
		signal, err = uc.queue.Reclaim(ctx, consumer, uc.lease)
		if err != nil {
			return false, fmt.Errorf("reclaim abandoned signal: %w", err)
		}
		if signal == nil {
			return false, nil
		}
		uc.logger.Info("reclaimed abandoned signal",
			"message_id", signal.StreamMessageID, "receive_count", signal.ReceiveCount)
	}

	if signal.ReceiveCount > uc.maxReceives {
		uc.logger.Error("signal exceeded max receives, dead-lettering",
			"message_id", signal.StreamMessageID,
			"receive_count", signal.ReceiveCount,
			"partition", signal.Partition,
		)
		if err := uc.queue.MoveToDeadLetter(ctx, signal, "max receive count exceeded"); err != nil {
			return true, fmt.Errorf("move signal to dead letter: %w", err)
		}
		if uc.metrics != nil {
			uc.metrics.DeadLettersTotal.Inc()
		}
		return true, nil
	}

	if err := uc.Handle(ctx, signal); err != nil {
		return true, err
	}

	if err := uc.queue.Ack(ctx, signal); err != nil {
		// Artifacts are already out; redelivery re-publishes the same
		// state, which is harmless.
		return true, fmt.Errorf("ack signal: %w", err)
	}
	return true, nil
}

// Start runs the consume loop until the context is canceled.
func (uc *RebuildUseCase) Start(ctx context.Context, consumer string, idleInterval time.Duration) {
	uc.logger.Info("rebuild worker started", "consumer", consumer)
	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("rebuild worker stopping")
			return
		default:
		}

		handled, err := uc.ProcessNext(ctx, consumer)
		if err != nil {
			uc.logger.Error("signal processing failed", "error", err)
		}
		if !handled {
			select {
			case <-time.After(idleInterval):
			case <-ctx.Done():
			}
		}
	}
}

func (uc *RebuildUseCase) countRebuild(status string) {
	if uc.metrics != nil {
		uc.metrics.RebuildsTotal.WithLabelValues(status).Inc()
	}
}
