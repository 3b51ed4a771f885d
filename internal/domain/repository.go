package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by point lookups when no record exists for the
// given key.
var ErrNotFound = errors.New("record not found")

// CanonicalStore is the key/value contract for the canonical event set and
// its change log. Every mutating write appends exactly one change entry for
// the mutated key, in the same transaction; writes that leave the record
// byte-identical append nothing.
type CanonicalStore interface {
	// Get performs a point lookup by identity key.
	Get(ctx context.Context, partition, identityKey string) (*CanonicalEvent, error)

	// Scan returns the full canonical set for a partition. The rebuild
	// worker relies on this instead of any in-memory snapshot.
	Scan(ctx context.Context, partition string) ([]CanonicalEvent, error)

	// Upsert writes a canonical event, reporting the change kind and
	// whether the record actually changed.
	Upsert(ctx context.Context, partition string, event CanonicalEvent) (ChangeKind, bool, error)

	// Delete removes a canonical event, appending a delete change entry if
	// the record existed.
	Delete(ctx context.Context, partition, identityKey string) (bool, error)

	// PurgeEndedBefore deletes events whose end date precedes the cutoff,
	// appending a delete change entry per removed key. Returns the removed
	// identity keys.
	PurgeEndedBefore(ctx context.Context, partition, cutoffDate string) ([]string, error)

	// ReadChanges returns change entries strictly after the given sequence,
	// in sequence order, up to limit.
	ReadChanges(ctx context.Context, partition string, afterSequence int64, limit int) ([]ChangeEntry, error)

	// DispatchCursor returns the last change sequence the dispatcher has
	// durably handed off for the partition.
	DispatchCursor(ctx context.Context, partition string) (int64, error)

	// AdvanceCursor moves the dispatch cursor forward. It never moves
	// backward.
	AdvanceCursor(ctx context.Context, partition string, sequence int64) error
}

// OverrideRepository stores user-submitted override records keyed by
// identity key. Conflicting writes for one key resolve last-write-wins by
// UpdatedAt.
type OverrideRepository interface {
	// Put stores a record. It returns false when a stored record with a
	// newer UpdatedAt won the conflict and the write was discarded.
	Put(ctx context.Context, partition string, record OverrideRecord) (bool, error)
	Get(ctx context.Context, partition, identityKey string) (*OverrideRecord, error)
	List(ctx context.Context, partition string) ([]OverrideRecord, error)
}

// GroupRepository manages feed group lifecycle: create, pause/resume,
// delete. Pausing stops new candidates without deleting historical events.
type GroupRepository interface {
	Put(ctx context.Context, group Group) error
	Get(ctx context.Context, id string) (*Group, error)
	List(ctx context.Context, activeOnly bool) ([]Group, error)
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// SignalQueue is the deduplicating queue contract. Two signals with the
// same dedup token within the dedup window collapse to one delivery;
// delivery order follows acceptance order; a signal that exceeds the max
// receive count moves to a dead-letter path instead of retrying forever.
type SignalQueue interface {
	// Enqueue accepts a signal. It returns false when the token was
	// already accepted within the dedup window and the signal collapsed.
	Enqueue(ctx context.Context, signal RebuildSignal) (bool, error)

	// Receive blocks up to the given duration for the next fresh signal.
	// A nil signal with nil error means the wait timed out.
	Receive(ctx context.Context, consumer string, block time.Duration) (*RebuildSignal, error)

	// Reclaim takes over a signal whose consumer's lease expired
	// (abandoned for at least minIdle). ReceiveCount is populated so the
	// caller can enforce the max receive count.
	Reclaim(ctx context.Context, consumer string, minIdle time.Duration) (*RebuildSignal, error)

	// Ack marks a delivered signal as fully processed.
	Ack(ctx context.Context, signal *RebuildSignal) error

	// MoveToDeadLetter acknowledges the signal and appends it to the
	// dead-letter stream for manual inspection.
	MoveToDeadLetter(ctx context.Context, signal *RebuildSignal, reason string) error
}

// ViewPublisher atomically replaces the materialized view rows for a
// partition: either the full row set for this rebuild becomes visible or
// none of it does.
type ViewPublisher interface {
	PublishView(ctx context.Context, partition string, rows []ViewRow) error
}

// StaticPublisher atomically replaces the static rendering input for a
// partition.
type StaticPublisher interface {
	PublishStatic(ctx context.Context, partition string, doc StaticDocument) error
}

// CacheInvalidator purges downstream edge caches for the given paths.
// Failures degrade to stale-until-TTL and are never fatal to a rebuild.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, paths []string) error
}

// DispatchJournal is the local spill path for rebuild signals that could
// not be enqueued after bounded retries. Journaled signals replay to the
// queue once it recovers, so a change log entry is never silently lost.
type DispatchJournal interface {
	Write(ctx context.Context, signal RebuildSignal) error
	Replay(ctx context.Context, handler func(signal RebuildSignal) error) error
	Truncate(ctx context.Context) error
}

// APIKeyRepository validates submission API keys. Implementations should
// cache to keep the database off the hot path.
type APIKeyRepository interface {
	IsValid(ctx context.Context, key string) (bool, error)
}

// StreamAdminRepository exposes queue introspection and repair operations
// for the admin API.
type StreamAdminRepository interface {
	GetGroupInfo(ctx context.Context, stream string) ([]ConsumerGroupInfo, error)
	GetConsumerInfo(ctx context.Context, stream, group string) ([]ConsumerInfo, error)
	GetPendingSummary(ctx context.Context, stream, group string) (*PendingMessageSummary, error)
	GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]PendingMessageDetail, error)
	ClaimMessages(ctx context.Context, stream, group, consumer string, minIdle time.Duration, messageIDs []string) ([]RebuildSignal, error)
	AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error)
	TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error)
}
