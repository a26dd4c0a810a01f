package pricing

import (
	"math"
	"testing"

	"github.com/osanz/go_market/internal/domain"
	"github.com/stretchr/testify/assert"
)

func items(lines ...domain.LineItem) []domain.LineItem { return lines }

func TestCompute_NoCoupon(t *testing.T) {
	calc := NewCalculator(0.19)

	totals := calc.Compute(items(
		domain.LineItem{ProductID: 1, UnitPrice: 100_000, Quantity: 2},
	), nil, 15_000)

	assert.Equal(t, 200_000.0, totals.Subtotal)
	assert.Equal(t, 0.0, totals.Discount)
	assert.Equal(t, 38_000.0, totals.Tax)
	assert.Equal(t, 15_000.0, totals.ShippingCost)
	assert.Equal(t, 253_000.0, totals.Total)
}

func TestCompute_PercentageCouponWithCap(t *testing.T) {
	calc := NewCalculator(0.19)

	coupon := &domain.Coupon{Kind: domain.CouponPercentage, Value: 10, AbsoluteCap: 15_000}
	discount := CouponDiscount(coupon, 200_000)
	assert.Equal(t, 15_000.0, discount) // min(20 000, cap 15 000)

	totals := calc.Compute(items(
		domain.LineItem{ProductID: 1, UnitPrice: 100_000, Quantity: 2},
	), []domain.AppliedCoupon{
		{Code: "TEN", Kind: domain.CouponPercentage, Discount: discount},
	}, 15_000)

	assert.Equal(t, 200_000.0, totals.Subtotal)
	assert.Equal(t, 15_000.0, totals.Discount)
	assert.Equal(t, 35_150.0, totals.Tax) // (200 000 - 15 000) * 0.19
	assert.Equal(t, 235_150.0, totals.Total)
}

func TestCompute_SalePriceWins(t *testing.T) {
	calc := NewCalculator(0.19)
	sale := 80_000.0

	totals := calc.Compute(items(
		domain.LineItem{ProductID: 1, UnitPrice: 100_000, SalePrice: &sale, Quantity: 2},
	), nil, 0)

	assert.Equal(t, 160_000.0, totals.Subtotal)
}

func TestCompute_FixedCouponCappedAtSubtotal(t *testing.T) {
	coupon := &domain.Coupon{Kind: domain.CouponFixedAmount, Value: 50_000}
	assert.Equal(t, 30_000.0, CouponDiscount(coupon, 30_000))
	assert.Equal(t, 50_000.0, CouponDiscount(coupon, 200_000))
}

func TestCompute_FreeShippingZeroesShippingAndFlags(t *testing.T) {
	calc := NewCalculator(0.19)

	totals := calc.Compute(items(
		domain.LineItem{ProductID: 1, UnitPrice: 10_000, Quantity: 1},
	), []domain.AppliedCoupon{
		{Code: "SHIPFREE", Kind: domain.CouponFreeShipping},
	}, 12_000)

	assert.True(t, totals.FreeShipping)
	assert.Equal(t, 0.0, totals.ShippingCost)
	assert.Equal(t, 0.0, totals.Discount)
	assert.Equal(t, 11_900.0, totals.Total)
}

func TestCompute_StackedCouponsNeverExceedSubtotal(t *testing.T) {
	calc := NewCalculator(0.19)

	totals := calc.Compute(items(
		domain.LineItem{ProductID: 1, UnitPrice: 10_000, Quantity: 1},
	), []domain.AppliedCoupon{
		{Code: "A", Kind: domain.CouponFixedAmount, Discount: 7_000},
		{Code: "B", Kind: domain.CouponFixedAmount, Discount: 7_000},
	}, 0)

	assert.Equal(t, 10_000.0, totals.Discount)
	assert.Equal(t, 0.0, totals.Tax)
	assert.Equal(t, 0.0, totals.Total)
	assert.GreaterOrEqual(t, totals.Total, 0.0)
}

func TestCompute_RoundsAfterEachCoupon(t *testing.T) {
	calc := NewCalculator(0)

	// Each third-of-a-cent discount rounds on its own instead of accumulating.
	totals := calc.Compute(items(
		domain.LineItem{ProductID: 1, UnitPrice: 10, Quantity: 1},
	), []domain.AppliedCoupon{
		{Code: "A", Kind: domain.CouponFixedAmount, Discount: 0.333},
		{Code: "B", Kind: domain.CouponFixedAmount, Discount: 0.333},
		{Code: "C", Kind: domain.CouponFixedAmount, Discount: 0.333},
	}, 0)

	assert.Equal(t, 0.99, totals.Discount)
	assert.Equal(t, 9.01, totals.Total)
}

func TestCompute_SanitizesNonFiniteInput(t *testing.T) {
	calc := NewCalculator(0.19)

	totals := calc.Compute(items(
		domain.LineItem{ProductID: 1, UnitPrice: math.NaN(), Quantity: 2},
		domain.LineItem{ProductID: 2, UnitPrice: 5_000, Quantity: 1},
	), []domain.AppliedCoupon{
		{Code: "BAD", Kind: domain.CouponFixedAmount, Discount: math.Inf(1)},
	}, math.NaN())

	assert.Equal(t, 5_000.0, totals.Subtotal)
	assert.Equal(t, 0.0, totals.Discount)
	assert.Equal(t, 0.0, totals.ShippingCost)
	assert.False(t, math.IsNaN(totals.Total))
}

func TestCompute_TotalFlooredAtZero(t *testing.T) {
	calc := NewCalculator(0.19)

	totals := calc.Compute(nil, []domain.AppliedCoupon{
		{Code: "A", Kind: domain.CouponFixedAmount, Discount: 1_000},
	}, 0)

	assert.Equal(t, 0.0, totals.Total)
}

func TestLineSubtotal_RecomputesIgnoringStoredValue(t *testing.T) {
	line := domain.LineItem{ProductID: 1, UnitPrice: 2_500, Quantity: 3, Subtotal: 999}
	assert.Equal(t, 7_500.0, LineSubtotal(line))
}

func TestNewCalculator_RejectsBadRate(t *testing.T) {
	assert.Equal(t, DefaultTaxRate, NewCalculator(math.NaN()).TaxRate)
	assert.Equal(t, DefaultTaxRate, NewCalculator(-1).TaxRate)
	assert.Equal(t, 0.0, NewCalculator(0).TaxRate)
}
