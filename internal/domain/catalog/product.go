// Package catalog defines the product catalog contract consumed by the
// inventory core. The catalog itself (CRUD, categories, suppliers) is owned
// by an external collaborator; the core only reads the fields it needs for
// allocation and reorder arithmetic.
package catalog

import (
	"context"
	"time"

	"pharmstock/internal/core/apperror"
	"pharmstock/internal/core/id"
	"pharmstock/internal/core/types"
)

// Product is the read model of a catalog item.
type Product struct {
	ID   id.ID  `db:"id" json:"id"`
	SKU  string `db:"sku" json:"sku"`
	Name string `db:"name" json:"name"`

	// SupplierID references the preferred supplier. Nil when the product
	// has no supplier assigned; recommendations for it group under the
	// unknown-supplier key.
	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`

	CostPrice    types.Money `db:"cost_price" json:"costPrice"`
	SellingPrice types.Money `db:"selling_price" json:"sellingPrice"`

	// MinStockLevel drives the no-history reorder path. Zero means unset;
	// the engine falls back to its configured default.
	MinStockLevel types.Quantity `db:"min_stock_level" json:"minStockLevel"`
	MaxStockLevel types.Quantity `db:"max_stock_level" json:"maxStockLevel"`
	ReorderLevel  types.Quantity `db:"reorder_level" json:"reorderLevel"`

	IsPrescription bool `db:"is_prescription" json:"isPrescription"`
	IsActive       bool `db:"is_active" json:"isActive"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate implements basic sanity checks for fixtures and imports.
func (p *Product) Validate(ctx context.Context) error {
	if p.SKU == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.CostPrice.IsNegative() {
		return apperror.NewValidation("cost price cannot be negative").
			WithDetail("field", "costPrice")
	}
	return nil
}

// Catalog is the outbound collaborator interface for product lookups.
type Catalog interface {
	// GetProduct returns a product by id. NOT_FOUND when absent.
	GetProduct(ctx context.Context, productID id.ID) (*Product, error)

	// ListActive returns every active product. The reorder engine walks
	// this list once per run.
	ListActive(ctx context.Context) ([]*Product, error)
}
