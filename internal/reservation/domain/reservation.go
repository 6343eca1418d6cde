package domain

import "time"

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusExpired   ReservationStatus = "EXPIRED"
)

// Reservation is a time-bound hold on stock units. It leaves PENDING exactly
// once, via confirm, cancel or expiry, and is never mutated afterwards.
type Reservation struct {
	ID        string
	SKU       string
	UserID    string
	Quantity  int
	Status    ReservationStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Terminal reports whether the reservation has left PENDING.
func (r Reservation) Terminal() bool { return r.Status != StatusPending }

// ExpiredBy reports whether the hold is no longer valid at now.
func (r Reservation) ExpiredBy(now time.Time) bool { return !now.Before(r.ExpiresAt) }

// Order is a confirmed reservation kept for the audit trail.
type Order struct {
	Reservation
	ConfirmedAt time.Time
}
