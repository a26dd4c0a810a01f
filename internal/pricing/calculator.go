// Package pricing computes cart totals. Everything here is a pure function of
// its inputs; the cart aggregate assigns the output wholesale after every
// mutation.
package pricing

import (
	"math"

	"github.com/osanz/go_market/internal/domain"
)

// DefaultTaxRate is the single-jurisdiction rate applied to the discounted
// subtotal.
const DefaultTaxRate = 0.19

type Calculator struct {
	TaxRate float64
}

func NewCalculator(taxRate float64) Calculator {
	if !isFinite(taxRate) || taxRate < 0 {
		taxRate = DefaultTaxRate
	}
	return Calculator{TaxRate: taxRate}
}

// Round2 rounds a money value to 2 decimal places. Rounding happens after each
// coupon's discount, not only at the end, so multiple coupons cannot compound
// rounding drift.
func Round2(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return math.Round(v*100) / 100
}

// sanitize is the last-resort invariant guard: a non-finite component
// contributes 0 rather than poisoning the totals. Callers are expected to have
// rejected non-finite input at mutation time already.
func sanitize(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LineSubtotal recomputes quantity * effective price for one line. It never
// trusts the stored per-item subtotal.
func LineSubtotal(item domain.LineItem) float64 {
	if item.Quantity <= 0 {
		return 0
	}
	return Round2(float64(item.Quantity) * sanitize(item.EffectivePrice()))
}

// CouponDiscount computes the money a coupon takes off a given subtotal. This
// is the value frozen into an AppliedCoupon at apply time.
func CouponDiscount(c *domain.Coupon, subtotal float64) float64 {
	subtotal = sanitize(subtotal)
	switch c.Kind {
	case domain.CouponPercentage:
		d := Round2(subtotal * sanitize(c.Value) / 100)
		if c.AbsoluteCap > 0 && d > c.AbsoluteCap {
			d = Round2(c.AbsoluteCap)
		}
		return d
	case domain.CouponFixedAmount:
		return Round2(math.Min(sanitize(c.Value), subtotal))
	case domain.CouponFreeShipping:
		return 0
	}
	return 0
}

// Compute derives the full totals breakdown. Applied coupon discounts are
// additive, each clamped so the running discount never exceeds the subtotal; a
// free-shipping coupon zeroes the shipping component and sets the flag.
func (c Calculator) Compute(items []domain.LineItem, coupons []domain.AppliedCoupon, shippingCost float64) domain.Totals {
	var subtotal float64
	for _, item := range items {
		subtotal = Round2(subtotal + LineSubtotal(item))
	}

	var discount float64
	freeShipping := false
	for _, ac := range coupons {
		if ac.Kind == domain.CouponFreeShipping {
			freeShipping = true
			continue
		}
		d := sanitize(ac.Discount)
		if remaining := subtotal - discount; d > remaining {
			d = remaining
		}
		if d < 0 {
			d = 0
		}
		discount = Round2(discount + d)
	}

	shipping := sanitize(shippingCost)
	if shipping < 0 {
		shipping = 0
	}
	if freeShipping {
		shipping = 0
	}

	tax := Round2((subtotal - discount) * c.TaxRate)
	total := Round2(subtotal - discount + tax + shipping)
	if total < 0 {
		total = 0
	}

	return domain.Totals{
		Subtotal:     subtotal,
		Discount:     discount,
		Tax:          tax,
		ShippingCost: shipping,
		Total:        total,
		FreeShipping: freeShipping,
	}
}
