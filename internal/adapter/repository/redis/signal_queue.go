package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eventforge/eventforge/internal/domain"
)

const (
	// SignalStreamKey is the Redis Stream carrying coalesced rebuild
	// signals. Exported so the admin API can introspect it by name.
	SignalStreamKey = "rebuild_signals"
	// DLQStreamKey is the dead-letter stream for signals that exhausted
	// their delivery attempts.
	DLQStreamKey = "rebuild_signals_dlq"

	dedupKeyPrefix = "rebuild_dedup:"
)

// SignalQueue implements domain.SignalQueue on Redis Streams. Token
// deduplication uses SET NX guards keyed by dedup token: the first accept
// within a window appends to the stream, later ones collapse. Consumer
// groups provide ordered delivery, pending-entry bookkeeping, and lease
// reclaim via XAUTOCLAIM.
type SignalQueue struct {
	client *redis.Client
	logger *slog.Logger
	group  string
	window time.Duration
}

// NewSignalQueue creates the queue and ensures its consumer group exists.
func NewSignalQueue(client *redis.Client, logger *slog.Logger, group string, window time.Duration) (*SignalQueue, error) {
	q := &SignalQueue{
		client: client,
		logger: logger.With("component", "signal_queue"),
		group:  group,
		window: window,
	}
	err := client.XGroupCreateMkStream(context.Background(), SignalStreamKey, group, "0").Err()
	if err != nil && !isBusyGroupError(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return q, nil
}

// Enqueue accepts a signal unless its dedup token was already accepted
// within the window. The dedup guard lives twice the window so a token is
// still held while its signal waits in the stream.
func (q *SignalQueue) Enqueue(ctx context.Context, signal domain.RebuildSignal) (bool, error) {
	dedupKey := dedupKeyPrefix + signal.DedupToken
	accepted, err := q.client.SetNX(ctx, dedupKey, "1", 2*q.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup guard: %w", err)
	}
	if !accepted {
		return false, nil
	}

	payload, err := json.Marshal(signal)
	if err != nil {
		return false, fmt.Errorf("marshal signal: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: SignalStreamKey,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
	if err != nil {
		// Release the guard so a retry can re-accept the token instead of
		// collapsing against a signal that never made it into the stream.
		if delErr := q.client.Del(ctx, dedupKey).Err(); delErr != nil {
			q.logger.Warn("failed to release dedup guard after XADD failure",
				"token", signal.DedupToken, "error", delErr)
		}
		return false, fmt.Errorf("append signal to stream: %w", err)
	}
	return true, nil
}

// Receive blocks up to the given duration for the next fresh signal.
func (q *SignalQueue) Receive(ctx context.Context, consumer string, block time.Duration) (*domain.RebuildSignal, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{SignalStreamKey, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read signal stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	signal, err := q.decode(msg)
	if err != nil {
		q.logger.Warn("dropping undecodable signal message", "message_id", msg.ID, "error", err)
		_ = q.client.XAck(ctx, SignalStreamKey, q.group, msg.ID).Err()
		return nil, nil
	}
	signal.ReceiveCount = 1
	return signal, nil
}

// Reclaim takes over one signal whose lease has been idle at least minIdle,
// populating ReceiveCount from the pending-entries list so callers can
// enforce the delivery limit.
func (q *SignalQueue) Reclaim(ctx context.Context, consumer string, minIdle time.Duration) (*domain.RebuildSignal, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   SignalStreamKey,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("autoclaim signal: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	msg := msgs[0]
	signal, err := q.decode(msg)
	if err != nil {
		q.logger.Warn("dropping undecodable reclaimed signal", "message_id", msg.ID, "error", err)
		_ = q.client.XAck(ctx, SignalStreamKey, q.group, msg.ID).Err()
		return nil, nil
	}

	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: SignalStreamKey,
		Group:  q.group,
		Start:  msg.ID,
		End:    msg.ID,
		Count:  1,
	}).Result()
	if err == nil && len(pending) > 0 {
		signal.ReceiveCount = pending[0].RetryCount
	} else {
		signal.ReceiveCount = 2 // reclaimed, so at least a second delivery
	}
	return signal, nil
}

// Ack marks a delivered signal as processed.
func (q *SignalQueue) Ack(ctx context.Context, signal *domain.RebuildSignal) error {
	if err := q.client.XAck(ctx, SignalStreamKey, q.group, signal.StreamMessageID).Err(); err != nil {
		return fmt.Errorf("ack signal %s: %w", signal.StreamMessageID, err)
	}
	return nil
}

// MoveToDeadLetter appends the signal to the DLQ stream and acknowledges
// the original so it is never redelivered.
func (q *SignalQueue) MoveToDeadLetter(ctx context.Context, signal *domain.RebuildSignal, reason string) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal signal for DLQ: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: DLQStreamKey,
		Values: map[string]interface{}{
			"payload":         payload,
			"original_stream": SignalStreamKey,
			"original_msg_id": signal.StreamMessageID,
			"reason":          reason,
			"failed_at":       time.Now().UTC().Format(time.RFC3339),
		},
	})
	pipe.XAck(ctx, SignalStreamKey, q.group, signal.StreamMessageID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("move signal to DLQ: %w", err)
	}
	q.logger.Warn("signal moved to DLQ",
		"message_id", signal.StreamMessageID, "partition", signal.Partition, "reason", reason)
	return nil
}

func (q *SignalQueue) decode(msg redis.XMessage) (*domain.RebuildSignal, error) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, errors.New("message has no payload field")
	}
	var signal domain.RebuildSignal
	if err := json.Unmarshal([]byte(payload), &signal); err != nil {
		return nil, fmt.Errorf("unmarshal signal: %w", err)
	}
	signal.StreamMessageID = msg.ID
	return &signal, nil
}

func isBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
