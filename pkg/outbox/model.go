// Package outbox decouples engine state transitions from event delivery: an
// in-memory journal of lifecycle events drained to Kafka by a relay. Engine
// correctness never depends on this pipeline.
package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
)

type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	LeaseUntil    time.Time
	RetryCount    int
	LastError     string
}
