package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds the Prometheus metrics for the collector and
// dispatcher.
type PipelineMetrics struct {
	FeedFetchesTotal     *prometheus.CounterVec
	EntriesSkippedTotal  *prometheus.CounterVec
	CanonicalWritesTotal *prometheus.CounterVec
	MergeConflictsTotal  prometheus.Counter
	OrphanOverridesGauge prometheus.Gauge
	SignalsTotal         *prometheus.CounterVec
	DispatchFailures     prometheus.Counter
	JournalSpillsTotal   prometheus.Counter
	APIKeyCacheHits      prometheus.Counter
	APIKeyCacheMisses    prometheus.Counter
}

// NewPipelineMetrics initializes and registers the collector-side metrics.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		FeedFetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "collector",
			Name:      "feed_fetches_total",
			Help:      "Total feed fetch attempts by status.",
		}, []string{"status"}), // status: ok, error
		EntriesSkippedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "collector",
			Name:      "entries_skipped_total",
			Help:      "Raw entries excluded during normalization, by reason.",
		}, []string{"reason"}),
		CanonicalWritesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "store",
			Name:      "canonical_writes_total",
			Help:      "Canonical store mutations by change kind.",
		}, []string{"kind"}),
		MergeConflictsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "merge",
			Name:      "override_conflicts_total",
			Help:      "Overrides that raced for the same identity key.",
		}),
		OrphanOverridesGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventforge",
			Subsystem: "merge",
			Name:      "orphan_overrides",
			Help:      "Overrides currently retained without a matching base event.",
		}),
		SignalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "dispatch",
			Name:      "signals_total",
			Help:      "Rebuild signals by outcome (enqueued, collapsed).",
		}, []string{"outcome"}),
		DispatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "Signal enqueue attempts that exhausted their retries.",
		}),
		JournalSpillsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "dispatch",
			Name:      "journal_spills_total",
			Help:      "Signals spilled to the local journal because the queue was unavailable.",
		}),
		APIKeyCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "auth",
			Name:      "api_key_cache_hits_total",
			Help:      "Total number of API key cache hits.",
		}),
		APIKeyCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "auth",
			Name:      "api_key_cache_misses_total",
			Help:      "Total number of API key cache misses.",
		}),
	}
}

// RebuildMetrics holds the Prometheus metrics for the rebuild worker.
type RebuildMetrics struct {
	RebuildsTotal     *prometheus.CounterVec
	RebuildDuration   prometheus.Histogram
	DeadLettersTotal  prometheus.Counter
	InvalidationFails prometheus.Counter
}

// NewRebuildMetrics initializes and registers the rebuild-side metrics.
func NewRebuildMetrics() *RebuildMetrics {
	return &RebuildMetrics{
		RebuildsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "rebuild",
			Name:      "rebuilds_total",
			Help:      "Rebuild attempts by final status.",
		}, []string{"status"}), // status: published, failed
		RebuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventforge",
			Subsystem: "rebuild",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of full rebuild cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		DeadLettersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "rebuild",
			Name:      "dead_letters_total",
			Help:      "Signals moved to the dead-letter stream after exceeding max receives.",
		}),
		InvalidationFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventforge",
			Subsystem: "rebuild",
			Name:      "cache_invalidation_failures_total",
			Help:      "Edge cache invalidation failures (non-fatal, stale until TTL).",
		}),
	}
}
