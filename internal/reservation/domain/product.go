package domain

// Product is a catalog entry. Stock counts physical units and is only
// decremented by a successful confirm.
type Product struct {
	SKU         string
	Name        string
	Description string
	PriceCents  int64
	Stock       int
}
