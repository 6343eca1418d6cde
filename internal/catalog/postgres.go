package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
)

// LoadProducts reads the catalog from a products table. The table is a
// read-only seed source; reservation state itself is never persisted.
func LoadProducts(ctx context.Context, pool *pgxpool.Pool) ([]domain.Product, error) {
	rows, err := pool.Query(ctx, `SELECT sku, name, description, price_cents, stock FROM products ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.SKU, &p.Name, &p.Description, &p.PriceCents, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("products table is empty")
	}
	return products, nil
}
