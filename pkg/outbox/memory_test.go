package outbox

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockBatchClaimsPendingEvents(t *testing.T) {
	s := NewMemoryStore(16)
	s.Append("reservation", "r-1", "ReservationCreated", []byte(`{}`), "")
	s.Append("reservation", "r-2", "ReservationCreated", []byte(`{}`), "")

	batch := s.LockBatch("relay-a", 10, time.Minute)
	require.Len(t, batch, 2)
	assert.Equal(t, StatusInProgress, batch[0].Status)
	assert.Equal(t, "relay-a", batch[0].RelayID)

	assert.Empty(t, s.LockBatch("relay-b", 10, time.Minute),
		"claimed events stay invisible while the lease holds")
}

func TestLockBatchRespectsBatchSize(t *testing.T) {
	s := NewMemoryStore(16)
	for i := 0; i < 5; i++ {
		s.Append("reservation", fmt.Sprintf("r-%d", i), "ReservationCreated", []byte(`{}`), "")
	}

	assert.Len(t, s.LockBatch("relay-a", 3, time.Minute), 3)
	assert.Len(t, s.LockBatch("relay-a", 3, time.Minute), 2)
}

func TestLockBatchReclaimsExpiredLeases(t *testing.T) {
	s := NewMemoryStore(16)
	s.Append("reservation", "r-1", "ReservationCreated", []byte(`{}`), "")

	require.Len(t, s.LockBatch("relay-a", 10, -time.Second), 1)

	batch := s.LockBatch("relay-b", 10, time.Minute)
	require.Len(t, batch, 1)
	assert.Equal(t, "relay-b", batch[0].RelayID, "a dead relay's claim must not strand the event")
}

func TestMarkSentDropsEvents(t *testing.T) {
	s := NewMemoryStore(16)
	s.Append("reservation", "r-1", "ReservationCreated", []byte(`{}`), "")
	s.Append("reservation", "r-2", "ReservationCreated", []byte(`{}`), "")

	batch := s.LockBatch("relay-a", 10, time.Minute)
	require.Len(t, batch, 2)

	s.MarkSent([]int64{batch[0].ID})
	assert.Equal(t, 1, s.Pending())
}

func TestMarkFailedRetriesThenParks(t *testing.T) {
	s := NewMemoryStore(16)
	s.Append("reservation", "r-1", "ReservationCreated", []byte(`{}`), "")

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		batch := s.LockBatch("relay-a", 10, time.Minute)
		require.Len(t, batch, 1, "attempt %d must be claimable", attempt)
		id = batch[0].ID
		s.MarkFailed(id, "broker unreachable")
	}

	assert.Empty(t, s.LockBatch("relay-a", 10, time.Minute),
		"an event out of retries is parked, not redelivered")
	assert.Equal(t, 1, s.Pending(), "parked events stay in the journal until evicted")
}

func TestEvictionPrefersFailedEvents(t *testing.T) {
	s := NewMemoryStore(2)
	s.Append("reservation", "r-1", "ReservationCreated", []byte(`{}`), "")
	s.Append("reservation", "r-2", "ReservationCreated", []byte(`{}`), "")

	// Exhaust r-1's retries so it parks as failed.
	batch := s.LockBatch("relay-a", 1, time.Minute)
	require.Len(t, batch, 1)
	for i := 0; i < maxRetries; i++ {
		s.MarkFailed(batch[0].ID, "broker unreachable")
	}

	s.Append("reservation", "r-3", "ReservationCreated", []byte(`{}`), "")
	require.Equal(t, 2, s.Pending())

	remaining := s.LockBatch("relay-b", 10, time.Minute)
	require.Len(t, remaining, 2)
	assert.Equal(t, "r-2", remaining[0].AggregateID)
	assert.Equal(t, "r-3", remaining[1].AggregateID)
}

func TestAppendEvictsOldestWhenNoFailures(t *testing.T) {
	s := NewMemoryStore(2)
	s.Append("reservation", "r-1", "ReservationCreated", []byte(`{}`), "")
	s.Append("reservation", "r-2", "ReservationCreated", []byte(`{}`), "")
	s.Append("reservation", "r-3", "ReservationCreated", []byte(`{}`), "")

	batch := s.LockBatch("relay-a", 10, time.Minute)
	require.Len(t, batch, 2)
	assert.Equal(t, "r-2", batch[0].AggregateID)
	assert.Equal(t, "r-3", batch[1].AggregateID)
}
