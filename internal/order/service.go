// Package order owns the order aggregate: creation as a frozen snapshot of a
// cart, and the lifecycle state machine that moves it from pending to
// delivered. Totals are copied verbatim at creation and never re-derived.
package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/osanz/go_market/internal/coupon"
	"github.com/osanz/go_market/internal/domain"
	"github.com/osanz/go_market/internal/notify"
	"github.com/osanz/go_market/internal/payment"
)

const (
	maxTransitionRetries = 3
	retryBackoff         = 25 * time.Millisecond
)

// Carts is the slice of the cart service checkout needs.
type Carts interface {
	SetShipping(ctx context.Context, userID string, shippingCost float64) (*domain.Cart, error)
	Clear(ctx context.Context, userID string) (*domain.Cart, error)
}

type Service struct {
	repo     Repository
	carts    Carts
	coupons  coupon.Store
	payments payment.Authority
	notifier notify.Sink
}

func NewService(repo Repository, carts Carts, coupons coupon.Store, payments payment.Authority, notifier notify.Sink) *Service {
	return &Service{
		repo:     repo,
		carts:    carts,
		coupons:  coupons,
		payments: payments,
		notifier: notifier,
	}
}

// Checkout converts the user's cart into a permanent order. The cart's totals
// are recomputed once with the chosen shipping cost, then copied verbatim; the
// customer approved exactly these numbers. On success the cart is cleared.
func (s *Service) Checkout(ctx context.Context, userID string, address domain.Address, shippingCost float64) (*domain.Order, error) {
	if address.Empty() {
		return nil, domain.ErrAddressRequired
	}

	cart, err := s.carts.SetShipping(ctx, userID, shippingCost)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, domain.ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	intentRef, err := s.payments.CreateIntent(ctx, cart.Totals.Total)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	orderID := uuid.New()

	// Redemption happens before the insert so usage caps can never be
	// exceeded; cap failures abort the checkout with the cart untouched.
	for _, applied := range cart.Coupons {
		cpn, findErr := s.coupons.FindByCode(ctx, applied.Code)
		if errors.Is(findErr, domain.ErrCouponNotFound) {
			// The coupon record vanished after apply; the frozen discount
			// stands, there is just no counter left to burn.
			log.Printf("checkout: coupon %s no longer exists, keeping frozen discount", applied.Code)
			continue
		}
		if findErr != nil {
			return nil, findErr
		}
		if redeemErr := s.coupons.Redeem(ctx, cpn.ID, userID, orderID); redeemErr != nil {
			return nil, redeemErr
		}
	}

	order := newOrderFromCart(orderID, cart, address, intentRef)

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	if _, clearErr := s.carts.Clear(ctx, userID); clearErr != nil {
		// The order exists; a stale cart is recoverable, losing the order is not.
		log.Printf("checkout: failed to clear cart for user %s: %v", userID, clearErr)
	}

	s.notifier.Notify(ctx, userID, "order_created", map[string]any{
		"order_id": order.ID,
		"total":    order.Totals.Total,
	})

	return order, nil
}

func newOrderFromCart(orderID uuid.UUID, cart *domain.Cart, address domain.Address, intentRef string) *domain.Order {
	now := time.Now()

	items := make([]domain.OrderProduct, len(cart.Items))
	for i, li := range cart.Items {
		items[i] = domain.OrderProduct{
			ProductID: li.ProductID,
			VendorID:  li.VendorID,
			Name:      li.Name,
			ImageURL:  li.ImageURL,
			UnitPrice: li.UnitPrice,
			SalePrice: li.SalePrice,
			Quantity:  li.Quantity,
			Subtotal:  li.Subtotal,
		}
	}

	return &domain.Order{
		ID:      orderID,
		UserID:  cart.UserID,
		Items:   items,
		Totals:  cart.Totals,
		Coupons: append([]domain.AppliedCoupon(nil), cart.Coupons...),
		Address: address,
		Payment: domain.PaymentIntent{Ref: intentRef, Status: domain.PaymentPending},
		Status:  domain.OrderStatusPending,
		History: []domain.StatusChange{
			{Status: domain.OrderStatusPending, Comment: "order created", At: now},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.repo.GetOrderByID(ctx, id)
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByUserID(ctx, userID)
}

func (s *Service) ListForVendor(ctx context.Context, vendorID int64) ([]*domain.Order, error) {
	return s.repo.ListOrdersByVendorID(ctx, vendorID)
}

// Confirm: vendor accepts a pending order.
func (s *Service) Confirm(ctx context.Context, orderID uuid.UUID, comment string) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "order_confirmed", func(o *domain.Order) error {
		return o.Confirm(comment)
	})
}

// StartProcessing: vendor begins preparing the order.
func (s *Service) StartProcessing(ctx context.Context, orderID uuid.UUID, comment string) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "order_processing", func(o *domain.Order) error {
		return o.StartProcessing(comment)
	})
}

// Ship: vendor hands the order to a carrier. Tracking metadata attaches
// atomically with the transition.
func (s *Service) Ship(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier, comment string) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "order_shipped", func(o *domain.Order) error {
		return o.Ship(trackingNumber, carrier, comment)
	})
}

// MarkDelivered: vendor or courier reports arrival.
func (s *Service) MarkDelivered(ctx context.Context, orderID uuid.UUID, comment string) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "order_delivered", func(o *domain.Order) error {
		return o.MarkDelivered(comment)
	})
}

// ConfirmDelivery: customer attests the delivery, unlocking reviews.
func (s *Service) ConfirmDelivery(ctx context.Context, orderID uuid.UUID, rating int, comment string) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "delivery_confirmed", func(o *domain.Order) error {
		return o.ConfirmDelivery(rating, comment)
	})
}

// DisputeDelivery: customer reports problems; an external collaborator picks
// the dispute up from the notification stream.
func (s *Service) DisputeDelivery(ctx context.Context, orderID uuid.UUID, comment string, problems []domain.Problem) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "delivery_disputed", func(o *domain.Order) error {
		return o.DisputeDelivery(comment, problems)
	})
}

// Cancel: customer backs out while the order is still cancellable.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID, comment string) (*domain.Order, error) {
	return s.mutate(ctx, orderID, "order_cancelled", func(o *domain.Order) error {
		return o.Cancel(comment)
	})
}

// mutate runs one load-apply-save cycle with bounded retry on version
// conflicts. Domain rule failures propagate immediately and leave the stored
// order untouched.
func (s *Service) mutate(ctx context.Context, orderID uuid.UUID, eventType string, apply func(*domain.Order) error) (*domain.Order, error) {
	var lastErr error

	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}

		order, err := s.repo.GetOrderByID(ctx, orderID)
		if err != nil {
			return nil, err
		}

		if err := apply(order); err != nil {
			return nil, err
		}

		err = s.repo.UpdateOrder(ctx, order)
		if errors.Is(err, domain.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		s.notifier.Notify(ctx, order.UserID, eventType, map[string]any{
			"order_id": order.ID,
			"status":   order.Status,
		})
		return order, nil
	}

	return nil, lastErr
}
