package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/engine"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
)

const aggregateType = "reservation"

// expiredTotal counts every PENDING hold that ran out its TTL, whether the
// sweep or a lazy confirm caught it.
var expiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "reservation_expired_total",
	Help: "Reservations expired by TTL.",
})

func init() {
	prometheus.MustRegister(expiredTotal)
}

// Service fronts the engine: it forwards calls, appends lifecycle events to
// the outbox, and enriches stats with advisory insights.
type Service struct {
	log      *slog.Logger
	engine   *engine.Engine
	events   EventStore
	advisory AdvisoryClient // nil when no advisory endpoint is configured
}

func NewService(log *slog.Logger, eng *engine.Engine, events EventStore, advisory AdvisoryClient) *Service {
	return &Service{log: log, engine: eng, events: events, advisory: advisory}
}

type ReserveRequest struct {
	SKU            string
	UserID         string
	Quantity       int
	IdempotencyKey string
}

func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (domain.Reservation, error) {
	r, created, err := s.engine.Reserve(req.SKU, req.UserID, req.Quantity, req.IdempotencyKey)
	if err != nil {
		return domain.Reservation{}, err
	}
	// A replayed key already announced its hold; only a fresh grant emits.
	if created {
		s.emit(ctx, r.ID, "ReservationCreated", domain.ReservationCreated{
			ReservationID: r.ID,
			SKU:           r.SKU,
			UserID:        r.UserID,
			Quantity:      r.Quantity,
			ExpiresAt:     r.ExpiresAt,
		})
	}
	return r, nil
}

func (s *Service) Confirm(ctx context.Context, id string) (domain.Reservation, error) {
	ord, err := s.engine.Confirm(id)
	r := ord.Reservation

	var expired *domain.ExpiredError
	switch {
	case err == nil:
		s.emit(ctx, r.ID, "ReservationConfirmed", domain.ReservationConfirmed{
			ReservationID: r.ID,
			SKU:           r.SKU,
			Quantity:      r.Quantity,
			ConfirmedAt:   ord.ConfirmedAt,
		})
	case errors.As(err, &expired):
		// Confirm materialized the expiry, so the transition is announced here
		// rather than by the sweep.
		expiredTotal.Inc()
		s.emit(ctx, r.ID, "ReservationExpired", domain.ReservationExpired{
			ReservationID: r.ID,
			SKU:           r.SKU,
			Quantity:      r.Quantity,
			ExpiresAt:     r.ExpiresAt,
		})
	}
	return r, err
}

// Cancel releases a hold. Always succeeds; cancelling a missing or terminal
// reservation is a no-op.
func (s *Service) Cancel(ctx context.Context, id string) {
	r, transitioned := s.engine.Cancel(id)
	if !transitioned {
		return
	}
	s.emit(ctx, r.ID, "ReservationCancelled", domain.ReservationCancelled{
		ReservationID: r.ID,
		SKU:           r.SKU,
		Quantity:      r.Quantity,
	})
}

func (s *Service) Get(id string) (domain.Reservation, error) {
	return s.engine.Get(id)
}

func (s *Service) Availability(sku string) (int, error) {
	return s.engine.Availability(sku)
}

func (s *Service) Products() []domain.Product {
	return s.engine.Products()
}

func (s *Service) Product(sku string) (domain.Product, error) {
	return s.engine.Product(sku)
}

func (s *Service) Stats() []domain.SKUStats {
	return s.engine.Stats()
}

// StatsEntry is one stats row, optionally carrying an advisory insight.
type StatsEntry struct {
	domain.SKUStats
	Recommendation string
	RiskLevel      domain.RiskLevel
}

// StatsWithInsights merges the engine snapshot with advisory output. Advisory
// failure is non-fatal: affected SKUs get a low-risk, no-recommendation entry.
func (s *Service) StatsWithInsights(ctx context.Context) []StatsEntry {
	stats := s.engine.Stats()

	bySKU := make(map[string]domain.Insight)
	if s.advisory != nil {
		insights, err := s.advisory.Insights(ctx, stats)
		if err != nil {
			s.log.Warn("advisory unavailable, using defaults", "err", err)
		}
		for _, in := range insights {
			bySKU[in.SKU] = in
		}
	}

	out := make([]StatsEntry, 0, len(stats))
	for _, st := range stats {
		entry := StatsEntry{SKUStats: st, RiskLevel: domain.RiskLow}
		if in, ok := bySKU[st.SKU]; ok {
			entry.Recommendation = in.Recommendation
			entry.RiskLevel = in.RiskLevel
		}
		out = append(out, entry)
	}
	return out
}

// RunSweeper expires stale holds on a fixed cadence until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	sw := engine.NewSweeper(s.log, s.engine, interval, s.publishExpired)
	return sw.Run(ctx)
}

func (s *Service) publishExpired(expired []domain.Reservation) {
	expiredTotal.Add(float64(len(expired)))
	for _, r := range expired {
		s.emit(context.Background(), r.ID, "ReservationExpired", domain.ReservationExpired{
			ReservationID: r.ID,
			SKU:           r.SKU,
			Quantity:      r.Quantity,
			ExpiresAt:     r.ExpiresAt,
		})
	}
}

func (s *Service) emit(ctx context.Context, aggregateID, eventType string, event any) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("event marshal failed", "type", eventType, "err", err)
		return
	}
	s.events.Append(aggregateType, aggregateID, eventType, payload, tracing.Traceparent(ctx))
}
