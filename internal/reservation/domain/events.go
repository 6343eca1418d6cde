package domain

import "time"

type ReservationCreated struct {
	ReservationID string
	SKU           string
	UserID        string
	Quantity      int
	ExpiresAt     time.Time
}

type ReservationConfirmed struct {
	ReservationID string
	SKU           string
	Quantity      int
	ConfirmedAt   time.Time
}

type ReservationCancelled struct {
	ReservationID string
	SKU           string
	Quantity      int
}

type ReservationExpired struct {
	ReservationID string
	SKU           string
	Quantity      int
	ExpiresAt     time.Time
}
