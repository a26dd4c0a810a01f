package domain

import "time"

// LineItem is one priced product line inside a cart. Name and ImageURL are
// snapshots taken from the catalog when the line was added, so the cart can be
// rendered without another catalog round trip. Subtotal is recomputed on every
// mutation and never trusted from stored state.
type LineItem struct {
	ProductID int64     `bson:"product_id" json:"product_id"`
	VendorID  int64     `bson:"vendor_id" json:"vendor_id"`
	Name      string    `bson:"name" json:"name"`
	ImageURL  string    `bson:"image_url" json:"image_url"`
	UnitPrice float64   `bson:"unit_price" json:"unit_price"`
	SalePrice *float64  `bson:"sale_price,omitempty" json:"sale_price,omitempty"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Subtotal  float64   `bson:"subtotal" json:"subtotal"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// EffectivePrice is the price a unit actually sells for.
func (li LineItem) EffectivePrice() float64 {
	if li.SalePrice != nil {
		return *li.SalePrice
	}
	return li.UnitPrice
}

// AppliedCoupon is a frozen copy of a coupon at apply time. While the coupon
// sits in a cart it gets re-validated on reconcile; once copied onto an order
// the discount value is permanent.
type AppliedCoupon struct {
	Code      string     `bson:"code" json:"code"`
	Kind      CouponKind `bson:"kind" json:"kind"`
	Discount  float64    `bson:"discount" json:"discount"`
	Stackable bool       `bson:"stackable" json:"stackable"`
	AppliedAt time.Time  `bson:"applied_at" json:"applied_at"`
}

// Totals is the derived money breakdown of a cart. It is replaced wholesale by
// the pricing calculator after every mutation; no field is ever patched in
// isolation.
type Totals struct {
	Subtotal     float64 `bson:"subtotal" json:"subtotal"`
	Discount     float64 `bson:"discount" json:"discount"`
	Tax          float64 `bson:"tax" json:"tax"`
	ShippingCost float64 `bson:"shipping_cost" json:"shipping_cost"`
	Total        float64 `bson:"total" json:"total"`
	FreeShipping bool    `bson:"free_shipping" json:"free_shipping"`
}

// Cart is the per-user mutable aggregate. Exactly one cart exists per user; it
// is created lazily on first mutation and cleared, not deleted, on checkout.
type Cart struct {
	ID      string          `bson:"_id,omitempty" json:"id"`
	UserID  string          `bson:"user_id" json:"user_id"`
	Items   []LineItem      `bson:"items" json:"items"`
	Coupons []AppliedCoupon `bson:"coupons" json:"coupons"`
	// ShippingCost is the chosen shipping input, set during checkout; the
	// derived shipping component lives in Totals.
	ShippingCost float64   `bson:"shipping_cost" json:"shipping_cost"`
	Totals       Totals    `bson:"totals" json:"totals"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// FindItem returns the index of the line for productID, or -1.
func (c *Cart) FindItem(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// HasCoupon reports whether code is already applied. Codes are compared the
// way the coupon store resolves them, after normalization.
func (c *Cart) HasCoupon(code string) bool {
	for _, ac := range c.Coupons {
		if ac.Code == code {
			return true
		}
	}
	return false
}
