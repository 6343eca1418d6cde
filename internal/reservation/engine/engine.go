// Package engine implements the in-memory reservation engine: per-SKU stock
// accounting, idempotent reserve, the confirm/cancel lifecycle and expiry.
//
// Concurrency model: each SKU has its own mutex held across every
// check-and-write on that SKU's stock, so two racing reserves can never both
// observe pre-decrement availability. An engine-level RWMutex guards the
// cross-SKU indexes (reservation id -> shard, idempotency key -> outcome).
// The only nested acquisition is shard lock first, engine lock second.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/clock"
)

// DefaultTTL is how long a PENDING reservation holds stock before it expires.
const DefaultTTL = 5 * time.Minute

// outcome memoizes the first result of a reserve call for an idempotency key.
// Failures are memoized too: a retried key replays the original denial even
// if stock has freed up since. Callers wanting a fresh attempt send a new key.
type outcome struct {
	res domain.Reservation
	ok  bool
	err error
}

type shard struct {
	mu           sync.Mutex
	product      domain.Product
	reservations map[string]*domain.Reservation
}

// availableLocked computes stock minus active PENDING holds, clamped at zero.
// Caller holds s.mu.
func (s *shard) availableLocked(now time.Time) int {
	reserved := 0
	for _, r := range s.reservations {
		if r.Status == domain.StatusPending && now.Before(r.ExpiresAt) {
			reserved += r.Quantity
		}
	}
	if avail := s.product.Stock - reserved; avail > 0 {
		return avail
	}
	return 0
}

type Engine struct {
	log   *slog.Logger
	clock clock.Clock
	ttl   time.Duration

	skus   []string          // sorted, fixed at construction
	shards map[string]*shard // fixed at construction, values mutate under shard locks

	mu     sync.RWMutex
	index  map[string]*shard  // reservation id -> owning shard
	idem   map[string]outcome // idempotency key -> first outcome
	orders []domain.Order     // confirmed reservations, audit trail
}

// New builds an engine over the given catalog. ttl <= 0 selects DefaultTTL.
func New(log *slog.Logger, clk clock.Clock, products []domain.Product, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	e := &Engine{
		log:    log,
		clock:  clk,
		ttl:    ttl,
		shards: make(map[string]*shard, len(products)),
		index:  make(map[string]*shard),
		idem:   make(map[string]outcome),
	}
	for _, p := range products {
		e.shards[p.SKU] = &shard{
			product:      p,
			reservations: make(map[string]*domain.Reservation),
		}
		e.skus = append(e.skus, p.SKU)
	}
	sort.Strings(e.skus)
	return e
}

// TTL returns the fixed reservation lifetime for this instance.
func (e *Engine) TTL() time.Duration { return e.ttl }

// Reserve places a PENDING hold on quantity units of sku, or replays the
// memoized outcome when idemKey has been seen before. The second return is
// true only when this call created a new hold, so callers can tell a fresh
// grant from a replay of one.
func (e *Engine) Reserve(sku, userID string, quantity int, idemKey string) (domain.Reservation, bool, error) {
	if quantity <= 0 {
		return domain.Reservation{}, false, fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrInvalidInput, quantity)
	}
	if idemKey == "" {
		return domain.Reservation{}, false, fmt.Errorf("%w: idempotency key is required", domain.ErrInvalidInput)
	}

	e.mu.RLock()
	prior, seen := e.idem[idemKey]
	e.mu.RUnlock()
	if seen {
		return prior.res, false, prior.err
	}

	sh, ok := e.shards[sku]
	if !ok {
		return domain.Reservation{}, false, fmt.Errorf("%w: %s", domain.ErrUnknownSKU, sku)
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := e.clock.Now()
	available := sh.availableLocked(now)
	if quantity > available {
		out := outcome{err: &domain.InsufficientStockError{SKU: sku, Requested: quantity, Available: available}}
		out = e.storeOutcome(idemKey, out, sh)
		return out.res, false, out.err
	}

	r := &domain.Reservation{
		ID:        uuid.NewString(),
		SKU:       sku,
		UserID:    userID,
		Quantity:  quantity,
		Status:    domain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(e.ttl),
	}
	out := e.storeOutcome(idemKey, outcome{res: *r, ok: true}, sh)
	if out.res.ID != r.ID {
		// A racing call with the same key won; its outcome stands and ours
		// is discarded before it ever reaches the table.
		return out.res, false, out.err
	}
	sh.reservations[r.ID] = r
	return out.res, true, nil
}

// storeOutcome records the first outcome for key; if another call with the
// same key got there first, the earlier outcome is returned unchanged.
// Caller holds the shard lock.
func (e *Engine) storeOutcome(key string, out outcome, sh *shard) outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prior, ok := e.idem[key]; ok {
		return prior
	}
	e.idem[key] = out
	if out.ok {
		e.index[out.res.ID] = sh
	}
	return out
}

func (e *Engine) shardFor(id string) *shard {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index[id]
}

// Confirm finalizes a PENDING reservation: the only operation that touches
// physical stock. A stale reservation is expired lazily here, so confirm
// fails deterministically even when no sweep has run yet. On success the
// returned order carries the confirmation time from the engine clock.
func (e *Engine) Confirm(id string) (domain.Order, error) {
	sh := e.shardFor(id)
	if sh == nil {
		return domain.Order{}, domain.ErrNotFound
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	r := sh.reservations[id]
	if r.Status != domain.StatusPending {
		return domain.Order{}, &domain.InvalidStateError{ID: id, Status: r.Status}
	}

	now := e.clock.Now()
	if r.ExpiredBy(now) {
		r.Status = domain.StatusExpired
		return domain.Order{Reservation: *r}, &domain.ExpiredError{ID: id}
	}

	if sh.product.Stock < r.Quantity {
		// Unreachable under correct accounting: a PENDING, non-expired hold
		// was counted against availability when granted. Logged as a breach,
		// not as a business failure.
		e.log.Error("invariant breach: stock depleted under a valid hold",
			"sku", r.SKU, "reservation_id", id, "stock", sh.product.Stock, "quantity", r.Quantity)
		return domain.Order{}, &domain.StockDepletedError{SKU: r.SKU, ID: id}
	}

	sh.product.Stock -= r.Quantity
	r.Status = domain.StatusConfirmed
	ord := domain.Order{Reservation: *r, ConfirmedAt: now}

	e.mu.Lock()
	e.orders = append(e.orders, ord)
	e.mu.Unlock()

	return ord, nil
}

// Cancel releases a PENDING hold. It tolerates unknown ids and terminal
// reservations: those are no-ops and the second return is false.
func (e *Engine) Cancel(id string) (domain.Reservation, bool) {
	sh := e.shardFor(id)
	if sh == nil {
		return domain.Reservation{}, false
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	r := sh.reservations[id]
	if r.Status != domain.StatusPending {
		return domain.Reservation{}, false
	}
	r.Status = domain.StatusCancelled
	return *r, true
}

// Get returns a snapshot of a reservation, expiry materialized lazily in the
// same way Confirm does it.
func (e *Engine) Get(id string) (domain.Reservation, error) {
	sh := e.shardFor(id)
	if sh == nil {
		return domain.Reservation{}, domain.ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	r := sh.reservations[id]
	if r.Status == domain.StatusPending && r.ExpiredBy(e.clock.Now()) {
		r.Status = domain.StatusExpired
	}
	return *r, nil
}

// Availability returns stock minus active holds for one SKU, never negative.
func (e *Engine) Availability(sku string) (int, error) {
	sh, ok := e.shards[sku]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownSKU, sku)
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.availableLocked(e.clock.Now()), nil
}

// Stats reports {available, reserved, sold} per SKU from one consistent
// snapshot: every shard lock is taken, in sorted SKU order, before anything
// is read, so a report never mixes pre- and post-mutation state.
func (e *Engine) Stats() []domain.SKUStats {
	for _, sku := range e.skus {
		e.shards[sku].mu.Lock()
	}
	defer func() {
		for _, sku := range e.skus {
			e.shards[sku].mu.Unlock()
		}
	}()

	now := e.clock.Now()
	out := make([]domain.SKUStats, 0, len(e.skus))
	for _, sku := range e.skus {
		sh := e.shards[sku]
		var reserved, sold int
		for _, r := range sh.reservations {
			switch {
			case r.Status == domain.StatusPending && now.Before(r.ExpiresAt):
				reserved += r.Quantity
			case r.Status == domain.StatusConfirmed:
				sold += r.Quantity
			}
		}
		available := sh.product.Stock - reserved
		if available < 0 {
			available = 0
		}
		out = append(out, domain.SKUStats{SKU: sku, Available: available, Reserved: reserved, Sold: sold})
	}
	return out
}

// ExpireDue transitions every PENDING reservation whose TTL has run out to
// EXPIRED and returns the transitioned records. Safe to run concurrently with
// Confirm and Cancel: whichever transition takes the shard lock first wins,
// the loser observes a terminal status.
func (e *Engine) ExpireDue() []domain.Reservation {
	var expired []domain.Reservation
	for _, sku := range e.skus {
		sh := e.shards[sku]
		sh.mu.Lock()
		now := e.clock.Now()
		for _, r := range sh.reservations {
			if r.Status == domain.StatusPending && r.ExpiredBy(now) {
				r.Status = domain.StatusExpired
				expired = append(expired, *r)
			}
		}
		sh.mu.Unlock()
	}
	return expired
}

// Products returns catalog snapshots with live stock counts.
func (e *Engine) Products() []domain.Product {
	out := make([]domain.Product, 0, len(e.skus))
	for _, sku := range e.skus {
		sh := e.shards[sku]
		sh.mu.Lock()
		out = append(out, sh.product)
		sh.mu.Unlock()
	}
	return out
}

// Product returns one catalog entry with its live stock count.
func (e *Engine) Product(sku string) (domain.Product, error) {
	sh, ok := e.shards[sku]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrUnknownSKU, sku)
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.product, nil
}

// Orders returns the audit trail of confirmed reservations.
func (e *Engine) Orders() []domain.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Order, len(e.orders))
	copy(out, e.orders)
	return out
}
