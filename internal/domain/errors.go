package domain

import "errors"

// Sentinel errors for the transaction core. Handlers map these to HTTP status
// and machine-readable reason codes; nothing below the HTTP layer formats a
// user-facing message.

// Validation: bad input shape.
var (
	ErrInvalidQuantity      = errors.New("quantity must be between 1 and 99")
	ErrInvalidInput         = errors.New("invalid input")
	ErrAddressRequired      = errors.New("delivery address is required")
	ErrShipmentDataRequired = errors.New("tracking number and carrier are required to ship")
	ErrDisputeDataRequired  = errors.New("dispute requires a comment and at least one problem")
)

// NotFound: referenced entity absent.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrCartNotFound    = errors.New("cart not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrCouponNotFound  = errors.New("coupon not found")
)

// State: the operation is legal somewhere, just not from here.
var (
	ErrIllegalTransition       = errors.New("illegal order status transition")
	ErrCouponAlreadyApplied    = errors.New("coupon already applied to this cart")
	ErrEmptyCart               = errors.New("cart is empty, nothing to checkout")
	ErrDeliveryAlreadyAttested = errors.New("delivery has already been confirmed or disputed")
	ErrItemNotFound            = errors.New("item not found in cart")
)

// Eligibility: the caller asked for something the rules do not grant.
var (
	ErrCouponInactive     = errors.New("coupon is not active")
	ErrCouponExpired      = errors.New("coupon is outside its validity window")
	ErrCouponExhausted    = errors.New("coupon global usage limit reached")
	ErrCouponUsageLimit   = errors.New("coupon per-user usage limit reached")
	ErrMinimumSpendNotMet = errors.New("cart subtotal below coupon minimum spend")
	ErrRestrictionNotMet  = errors.New("no cart item matches the coupon restrictions")
	ErrCouponNotStackable = errors.New("coupon cannot be combined with other coupons")
	ErrProductUnavailable = errors.New("product is not available for purchase")
	ErrInsufficientStock  = errors.New("insufficient stock")
)

// Conflict: transient concurrent-mutation contention, retried internally
// before it ever reaches a caller.
var ErrVersionConflict = errors.New("order was modified concurrently")
