package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a reservation id is unknown.
	ErrNotFound = errors.New("reservation not found")

	// ErrUnknownSKU is returned for operations against a SKU that is not in
	// the catalog.
	ErrUnknownSKU = errors.New("unknown sku")

	// ErrInvalidInput marks caller programming errors (non-positive quantity,
	// missing idempotency key). These are never memoized.
	ErrInvalidInput = errors.New("invalid input")
)

// InsufficientStockError is the expected business failure of reserve. It
// carries the availability observed at decision time.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

// InvalidStateError is returned when confirm hits a reservation that already
// left PENDING. The message names the terminal status so callers can tell
// "already confirmed" from "cancelled out from under me".
type InvalidStateError struct {
	ID     string
	Status ReservationStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("reservation %s is already %s", e.ID, e.Status)
}

// ExpiredError is returned when confirm arrives after the TTL ran out.
type ExpiredError struct {
	ID string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("reservation %s has expired", e.ID)
}

// StockDepletedError means physical stock was gone at confirm time despite a
// valid PENDING hold. Under correct accounting this is unreachable; a hit is
// a consistency breach, not a business failure, and must be logged as such.
type StockDepletedError struct {
	SKU string
	ID  string
}

func (e *StockDepletedError) Error() string {
	return fmt.Sprintf("stock for %s depleted before confirming reservation %s", e.SKU, e.ID)
}
