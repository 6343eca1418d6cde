package application

import (
	"context"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
)

// EventStore receives lifecycle events for asynchronous delivery. Appending
// is bookkeeping only and must never fail an engine call.
type EventStore interface {
	Append(aggregateType, aggregateID, eventType string, payload []byte, traceparent string)
}

// AdvisoryClient is the external AI insight service. Failures are degraded by
// the caller, never propagated to stats consumers.
type AdvisoryClient interface {
	Insights(ctx context.Context, stats []domain.SKUStats) ([]domain.Insight, error)
}
