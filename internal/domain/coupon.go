package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type CouponKind string

const (
	CouponPercentage   CouponKind = "percentage"
	CouponFixedAmount  CouponKind = "fixed_amount"
	CouponFreeShipping CouponKind = "free_shipping"
)

// Restriction narrows a coupon to parts of the catalog. Empty lists mean
// unrestricted.
type Restriction struct {
	ProductIDs  []int64 `json:"product_ids,omitempty"`
	CategoryIDs []int64 `json:"category_ids,omitempty"`
	VendorIDs   []int64 `json:"vendor_ids,omitempty"`
}

// Empty reports whether the coupon applies to the whole catalog.
func (r Restriction) Empty() bool {
	return len(r.ProductIDs) == 0 && len(r.CategoryIDs) == 0 && len(r.VendorIDs) == 0
}

// Coupon is a global entity shared across carts. It is read-mostly; the only
// mutation is the used_count increment at redemption, which the store performs
// as an atomic increment-and-check.
type Coupon struct {
	ID           uuid.UUID
	Code         string
	Kind         CouponKind
	Value        float64
	AbsoluteCap  float64 // 0 = uncapped
	MinimumSpend float64
	StartsAt     time.Time
	EndsAt       time.Time
	GlobalLimit  int // 0 = unlimited
	PerUserLimit int // 0 = unlimited
	UsedCount    int
	Active       bool
	Stackable    bool
	Restriction  Restriction
}

// Available reports whether the coupon can be applied at all right now:
// active, inside its [start, end) window, and under its global cap.
func (c *Coupon) Available(now time.Time) bool {
	if !c.Active {
		return false
	}
	if now.Before(c.StartsAt) || !now.Before(c.EndsAt) {
		return false
	}
	if c.GlobalLimit > 0 && c.UsedCount >= c.GlobalLimit {
		return false
	}
	return true
}

// Matches reports whether a cart line falls inside the coupon's restriction
// set. Category membership comes from the catalog snapshot carried on the
// line's product at validation time.
func (r Restriction) Matches(productID, vendorID int64, categoryIDs []int64) bool {
	if r.Empty() {
		return true
	}
	for _, id := range r.ProductIDs {
		if id == productID {
			return true
		}
	}
	for _, id := range r.VendorIDs {
		if id == vendorID {
			return true
		}
	}
	for _, want := range r.CategoryIDs {
		for _, have := range categoryIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}

// NormalizeCode is the canonical form coupon codes are stored and compared in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
