// Package catalog exposes the product catalog as a read-only external
// collaborator. The transaction core never writes through this boundary.
package catalog

import (
	"context"
	"errors"
)

var ErrProductNotFound = errors.New("product not found in catalog")

// Snapshot is the catalog's view of a product at one point in time. Stock is a
// soft signal, not a reservation.
type Snapshot struct {
	ProductID   int64    `json:"product_id"`
	VendorID    int64    `json:"vendor_id"`
	Name        string   `json:"name"`
	ImageURL    string   `json:"image_url"`
	Price       float64  `json:"price"`
	SalePrice   *float64 `json:"sale_price,omitempty"`
	Stock       int      `json:"stock"`
	Approved    bool     `json:"approved"`
	CategoryIDs []int64  `json:"category_ids,omitempty"`
}

// EffectivePrice is the price a unit currently sells for.
func (s *Snapshot) EffectivePrice() float64 {
	if s.SalePrice != nil {
		return *s.SalePrice
	}
	return s.Price
}

// Reader fetches fresh product snapshots. Consumers define this interface, not
// the HTTP implementation.
type Reader interface {
	GetProduct(ctx context.Context, productID int64) (*Snapshot, error)
}
