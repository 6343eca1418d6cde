// Package catalog loads the product catalog the engine is built over.
// Products are created at load and never deleted; only the engine mutates
// stock after that.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
)

type fileEntry struct {
	SKU         string `yaml:"sku"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	PriceCents  int64  `yaml:"price_cents"`
	Stock       int    `yaml:"stock"`
}

type file struct {
	Products []fileEntry `yaml:"products"`
}

// Load reads a yaml seed file into catalog products.
func Load(path string) ([]domain.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("catalog %s has no products", path)
	}

	seen := make(map[string]bool, len(f.Products))
	products := make([]domain.Product, 0, len(f.Products))
	for _, e := range f.Products {
		if e.SKU == "" {
			return nil, fmt.Errorf("catalog %s: product with empty sku", path)
		}
		if seen[e.SKU] {
			return nil, fmt.Errorf("catalog %s: duplicate sku %s", path, e.SKU)
		}
		if e.Stock < 0 {
			return nil, fmt.Errorf("catalog %s: negative stock for %s", path, e.SKU)
		}
		seen[e.SKU] = true
		products = append(products, domain.Product{
			SKU:         e.SKU,
			Name:        e.Name,
			Description: e.Description,
			PriceCents:  e.PriceCents,
			Stock:       e.Stock,
		})
	}
	return products, nil
}

// Default is the built-in seed catalog used when no source is configured.
func Default() []domain.Product {
	return []domain.Product{
		{
			SKU:         "IPHONE-15-PRO",
			Name:        "iPhone 15 Pro Max",
			Description: "Titanium design, A17 Pro chip, customizable Action button.",
			PriceCents:  119900,
			Stock:       5,
		},
		{
			SKU:         "MBP-M3-MAX",
			Name:        "MacBook Pro M3 Max",
			Description: "The most advanced chips ever built for a personal computer.",
			PriceCents:  349900,
			Stock:       3,
		},
		{
			SKU:         "AIRPODS-MAX-2",
			Name:        "AirPods Max 2",
			Description: "The ultimate listening experience. Now with USB-C.",
			PriceCents:  54900,
			Stock:       10,
		},
	}
}
