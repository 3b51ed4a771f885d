package domain

import "time"

// RebuildSignal is one coalesced rebuild trigger. The payload deliberately
// carries no event data: the rebuild worker always re-reads current
// canonical state, so the message schema can evolve without coordinated
// deploys.
type RebuildSignal struct {
	Partition   string    `json:"partition_id"`
	DedupToken  string    `json:"dedup_token"`
	EnqueueTime time.Time `json:"enqueue_time"`

	// StreamMessageID and ReceiveCount are queue delivery bookkeeping,
	// populated on receive and never serialized into the payload.
	StreamMessageID string `json:"-"`
	ReceiveCount    int64  `json:"-"`
}

// ConsumerGroupInfo describes a consumer group on the signal stream.
type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// ConsumerInfo describes a single consumer in a group.
type ConsumerInfo struct {
	Name    string        `json:"name"`
	Pending int64         `json:"pending"`
	Idle    time.Duration `json:"idle_ms"`
}

// PendingMessageSummary summarizes undelivered-but-unacked signals.
type PendingMessageSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"first_message_id,omitempty"`
	LastMessageID  string           `json:"last_message_id,omitempty"`
	ConsumerTotals map[string]int64 `json:"consumer_totals,omitempty"`
}

// PendingMessageDetail is the per-message view of a pending signal.
type PendingMessageDetail struct {
	ID         string        `json:"id"`
	Consumer   string        `json:"consumer"`
	IdleTime   time.Duration `json:"idle_time_ms"`
	RetryCount int64         `json:"retry_count"`
}
