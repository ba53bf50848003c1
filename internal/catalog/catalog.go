// Package catalog holds the static product catalog. Products are loaded
// once from a JSON file at startup and never change while the process runs.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Product is one catalog entry. Prices maps an allowed quantity to the
// total price for that quantity tier.
type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Prices      map[int]float64 `json:"prices"`
}

// TierPrice returns the price for one of the product's quantity tiers.
func (p *Product) TierPrice(qty int) (float64, bool) {
	price, ok := p.Prices[qty]
	return price, ok
}

// Tiers returns the allowed quantities in ascending order.
func (p *Product) Tiers() []int {
	tiers := make([]int, 0, len(p.Prices))
	for qty := range p.Prices {
		tiers = append(tiers, qty)
	}
	sort.Ints(tiers)
	return tiers
}

// Catalog is the immutable set of products on sale
type Catalog struct {
	products []Product
	byID     map[int]*Product
}

// Load reads and validates the catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return New(products)
}

// New builds a catalog from an in-memory product list
func New(products []Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	byID := make(map[int]*Product, len(products))
	for i := range products {
		p := &products[i]
		if p.Name == "" {
			return nil, fmt.Errorf("product %d has no name", p.ID)
		}
		if len(p.Prices) == 0 {
			return nil, fmt.Errorf("product %d (%s) has no price tiers", p.ID, p.Name)
		}
		for qty, price := range p.Prices {
			if qty <= 0 || price <= 0 {
				return nil, fmt.Errorf("product %d (%s) has invalid tier %d: %v", p.ID, p.Name, qty, price)
			}
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %d", p.ID)
		}
		byID[p.ID] = p
	}

	return &Catalog{products: products, byID: byID}, nil
}

// Products returns all products in file order
func (c *Catalog) Products() []Product {
	return c.products
}

// ByID looks up a product; returns nil if the id is not in the catalog
func (c *Catalog) ByID(id int) *Product {
	return c.byID[id]
}
