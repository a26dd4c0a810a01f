// Package coupon owns the coupon entity: lookup, eligibility validation and
// atomic redemption. Computing the discount amount is the cart aggregate's
// job, via the pricing calculator.
package coupon

import (
	"context"
	"time"

	"github.com/osanz/go_market/internal/domain"
)

// Validator evaluates a coupon's eligibility against a cart snapshot. Checks
// run in a fixed order and short-circuit on the first failure so the caller
// always gets the most actionable reason.
type Validator struct {
	store Store
}

func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// Validate returns nil when the coupon can be applied to the cart, or the
// eligibility error describing why not. categories maps productID to the
// product's category IDs from the catalog snapshot; nil disables
// category-based restriction matching.
func (v *Validator) Validate(ctx context.Context, c *domain.Coupon, cart *domain.Cart, userID string, categories map[int64][]int64) error {
	now := time.Now()

	// 1. Availability: active, inside the window, global cap unreached.
	if !c.Active {
		return domain.ErrCouponInactive
	}
	if now.Before(c.StartsAt) || !now.Before(c.EndsAt) {
		return domain.ErrCouponExpired
	}
	if c.GlobalLimit > 0 && c.UsedCount >= c.GlobalLimit {
		return domain.ErrCouponExhausted
	}

	// 2. Per-user historical redemption cap.
	if c.PerUserLimit > 0 {
		used, err := v.store.CountRedemptions(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		if used >= c.PerUserLimit {
			return domain.ErrCouponUsageLimit
		}
	}

	// 3. Minimum spend against the current subtotal.
	if cart.Totals.Subtotal < c.MinimumSpend {
		return domain.ErrMinimumSpendNotMet
	}

	// 4. One application per cart.
	if cart.HasCoupon(c.Code) {
		return domain.ErrCouponAlreadyApplied
	}

	// 5. Stacking policy: a non-stackable coupon cannot join a cart that
	// already carries one, and nothing stacks on top of a non-stackable
	// coupon.
	if len(cart.Coupons) > 0 && !c.Stackable {
		return domain.ErrCouponNotStackable
	}
	for _, applied := range cart.Coupons {
		if !applied.Stackable {
			return domain.ErrCouponNotStackable
		}
	}

	// 6. Restriction allow-list: at least one cart line must match.
	if !c.Restriction.Empty() {
		matched := false
		for _, item := range cart.Items {
			if c.Restriction.Matches(item.ProductID, item.VendorID, categories[item.ProductID]) {
				matched = true
				break
			}
		}
		if !matched {
			return domain.ErrRestrictionNotMet
		}
	}

	return nil
}
