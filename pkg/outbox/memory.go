package outbox

import (
	"sync"
	"time"
)

// MemoryStore is a bounded in-memory event journal. Reservation state is not
// persisted across restarts, so neither are its events; the journal keeps the
// store/relay/dispatcher pipeline while staying in-process.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []*Event
	limit  int
}

// NewMemoryStore caps the journal at limit undelivered events; once full, the
// oldest failed events are evicted first, then the oldest pending.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 1024
	}
	return &MemoryStore{limit: limit}
}

// Append enqueues a new pending event.
func (s *MemoryStore) Append(aggregateType, aggregateID, eventType string, payload []byte, traceparent string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.events = append(s.events, &Event{
		ID:            s.nextID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       payload,
		Traceparent:   traceparent,
		CreatedAt:     time.Now().UTC(),
		Status:        StatusPending,
	})

	if len(s.events) > s.limit {
		s.evictLocked()
	}
}

func (s *MemoryStore) evictLocked() {
	for i, e := range s.events {
		if e.Status == StatusFailed {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return
		}
	}
	s.events = s.events[1:]
}

// LockBatch claims up to batchSize deliverable events for relayID. Events
// whose lease expired are reclaimed, so a stalled relay pass cannot strand
// them forever.
func (s *MemoryStore) LockBatch(relayID string, batchSize int, lease time.Duration) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var batch []Event
	for _, e := range s.events {
		if len(batch) >= batchSize {
			break
		}
		claimable := e.Status == StatusPending ||
			(e.Status == StatusInProgress && now.After(e.LeaseUntil))
		if !claimable {
			continue
		}
		e.Status = StatusInProgress
		e.RelayID = relayID
		e.LeaseUntil = now.Add(lease)
		batch = append(batch, *e)
	}
	return batch
}

// MarkSent drops delivered events from the journal.
func (s *MemoryStore) MarkSent(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent := make(map[int64]bool, len(ids))
	for _, id := range ids {
		sent[id] = true
	}
	kept := s.events[:0]
	for _, e := range s.events {
		if !sent[e.ID] {
			kept = append(kept, e)
		}
	}
	s.events = kept
}

// maxRetries is how many delivery attempts an event gets before it is parked
// as failed and becomes eviction fodder.
const maxRetries = 5

// MarkFailed records a delivery failure. The event stays claimable until it
// exhausts its retries.
func (s *MemoryStore) MarkFailed(id int64, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.ID == id {
			e.RetryCount++
			e.LastError = errMsg
			if e.RetryCount >= maxRetries {
				e.Status = StatusFailed
			} else {
				e.Status = StatusPending
			}
			return
		}
	}
}

// Pending reports how many events are still waiting for delivery.
func (s *MemoryStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
