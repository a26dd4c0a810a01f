// Package cart owns the per-user cart aggregate: line items, applied coupons
// and derived totals. Every mutation runs inside the user's keyed critical
// section and ends with one recompute + one upsert, so partial states are
// never persisted.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/osanz/go_market/internal/catalog"
	"github.com/osanz/go_market/internal/coupon"
	"github.com/osanz/go_market/internal/domain"
	"github.com/osanz/go_market/internal/keylock"
	"github.com/osanz/go_market/internal/pricing"
)

const maxQuantity = 99

type Service struct {
	repo      Repository
	cache     Cache
	catalog   catalog.Reader
	coupons   coupon.Store
	validator *coupon.Validator
	calc      pricing.Calculator
	locks     *keylock.KeyedMutex
	sfg       singleflight.Group // Prevents cache stampede
}

func NewService(repo Repository, cache Cache, reader catalog.Reader, coupons coupon.Store, calc pricing.Calculator) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		catalog:   reader,
		coupons:   coupons,
		validator: coupon.NewValidator(coupons),
		calc:      calc,
		locks:     keylock.New(),
	}
}

// Get returns the user's cart, serving from cache when possible. A user with
// no cart yet gets an empty one; the document is only created on first
// mutation.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, domain.ErrCartNotFound) {
			return emptyCart(userID), nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, cart); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem puts quantity units of a product into the cart. If the product is
// already carted the quantities merge into the existing line, capped at the
// stock snapshot, instead of duplicating it.
func (s *Service) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 || quantity > maxQuantity {
		return nil, domain.ErrInvalidQuantity
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	// Snapshot is taken at the start of the critical section; the write below
	// uses exactly this read.
	snap, err := s.fetchSnapshot(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !snap.Approved {
		return nil, domain.ErrProductUnavailable
	}
	if snap.Stock <= 0 {
		return nil, fmt.Errorf("%w: 0 available", domain.ErrInsufficientStock)
	}

	cart, err := s.loadOrNew(ctx, userID)
	if err != nil {
		return nil, err
	}

	if idx := cart.FindItem(productID); idx >= 0 {
		merged := cart.Items[idx].Quantity + quantity
		if merged > snap.Stock {
			merged = snap.Stock
		}
		if merged > maxQuantity {
			merged = maxQuantity
		}
		cart.Items[idx] = lineFromSnapshot(snap, merged, cart.Items[idx].AddedAt)
	} else {
		if quantity > snap.Stock {
			return nil, fmt.Errorf("%w: %d available", domain.ErrInsufficientStock, snap.Stock)
		}
		cart.Items = append(cart.Items, lineFromSnapshot(snap, quantity, time.Now()))
	}

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateQuantity sets a line's quantity. Zero or negative removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity > maxQuantity {
		return nil, domain.ErrInvalidQuantity
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return nil, domain.ErrItemNotFound
	}

	if quantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		snap, err := s.fetchSnapshot(ctx, productID)
		if err != nil {
			return nil, err
		}
		if !snap.Approved {
			return nil, domain.ErrProductUnavailable
		}
		if quantity > snap.Stock {
			return nil, fmt.Errorf("%w: %d available", domain.ErrInsufficientStock, snap.Stock)
		}
		cart.Items[idx] = lineFromSnapshot(snap, quantity, cart.Items[idx].AddedAt)
	}

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem filters the line out of the cart.
func (s *Service) RemoveItem(ctx context.Context, userID string, productID int64) (*domain.Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return nil, domain.ErrItemNotFound
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ApplyCoupon validates the code against the current cart and, on success,
// freezes the discount computed against the current subtotal.
func (s *Service) ApplyCoupon(ctx context.Context, userID string, code string) (*domain.Cart, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return nil, domain.ErrInvalidInput
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	cpn, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// Subtotal must be current before the validator sees it.
	cart.Totals = s.calc.Compute(cart.Items, cart.Coupons, cart.ShippingCost)

	categories, err := s.categoriesFor(ctx, cpn, cart)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(ctx, cpn, cart, userID, categories); err != nil {
		return nil, err
	}

	cart.Coupons = append(cart.Coupons, domain.AppliedCoupon{
		Code:      cpn.Code,
		Kind:      cpn.Kind,
		Discount:  pricing.CouponDiscount(cpn, cart.Totals.Subtotal),
		Stackable: cpn.Stackable,
		AppliedAt: time.Now(),
	})

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveCoupon removes an applied coupon by code.
func (s *Service) RemoveCoupon(ctx context.Context, userID string, code string) (*domain.Cart, error) {
	code = domain.NormalizeCode(code)

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	found := false
	kept := cart.Coupons[:0]
	for _, ac := range cart.Coupons {
		if ac.Code == code {
			found = true
			continue
		}
		kept = append(kept, ac)
	}
	if !found {
		return nil, domain.ErrCouponNotFound
	}
	cart.Coupons = kept

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Reconcile re-syncs the cart against the catalog: lines whose product became
// unapproved or out of stock are dropped, surviving lines take current prices,
// and applied coupons are re-validated against the refreshed cart. Calling it
// twice with no catalog change yields identical totals.
func (s *Service) Reconcile(ctx context.Context, userID string) (*domain.Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.loadOrNew(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		snap, err := s.catalog.GetProduct(ctx, item.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			continue
		}
		if err != nil {
			// Transient catalog failure: abort without persisting anything.
			return nil, fmt.Errorf("reconcile cart: %w", err)
		}
		if !snap.Approved || snap.Stock <= 0 {
			continue
		}
		qty := item.Quantity
		if qty > snap.Stock {
			qty = snap.Stock
		}
		kept = append(kept, lineFromSnapshot(snap, qty, item.AddedAt))
	}
	cart.Items = kept

	if err := s.revalidateCoupons(ctx, cart, userID); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear empties items and coupons. The cart document survives with zero
// totals.
func (s *Service) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.loadOrNew(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Items = []domain.LineItem{}
	cart.Coupons = []domain.AppliedCoupon{}
	cart.ShippingCost = 0

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// SetShipping records the shipping cost chosen at checkout and recomputes the
// totals the order will freeze.
func (s *Service) SetShipping(ctx context.Context, userID string, shippingCost float64) (*domain.Cart, error) {
	if shippingCost < 0 {
		return nil, domain.ErrInvalidInput
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.ShippingCost = shippingCost

	if err := s.persist(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Service) fetchSnapshot(ctx context.Context, productID int64) (*catalog.Snapshot, error) {
	snap, err := s.catalog.GetProduct(ctx, productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch product snapshot: %w", err)
	}
	return snap, nil
}

func (s *Service) load(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Service) loadOrNew(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return emptyCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// persist recomputes every line subtotal, refreshes frozen coupon discounts
// against the new subtotal, derives the totals and writes the aggregate in one
// upsert, then invalidates the cache.
func (s *Service) persist(ctx context.Context, cart *domain.Cart) error {
	for i := range cart.Items {
		cart.Items[i].Subtotal = pricing.LineSubtotal(cart.Items[i])
	}

	s.refreshCouponDiscounts(ctx, cart)

	cart.Totals = s.calc.Compute(cart.Items, cart.Coupons, cart.ShippingCost)

	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return err
	}

	s.invalidateCache(cart.UserID)
	return nil
}

// refreshCouponDiscounts re-freezes each applied coupon's discount against the
// current subtotal. Lookup failures keep the previously frozen value; dropping
// coupons is Reconcile's job.
func (s *Service) refreshCouponDiscounts(ctx context.Context, cart *domain.Cart) {
	if len(cart.Coupons) == 0 {
		return
	}

	subtotal := s.calc.Compute(cart.Items, nil, 0).Subtotal
	for i := range cart.Coupons {
		cpn, err := s.coupons.FindByCode(ctx, cart.Coupons[i].Code)
		if err != nil {
			log.Printf("refresh coupon %s: %v", cart.Coupons[i].Code, err)
			continue
		}
		cart.Coupons[i].Discount = pricing.CouponDiscount(cpn, subtotal)
	}
}

// revalidateCoupons re-runs the full eligibility chain for every applied
// coupon and drops the ones that no longer pass.
func (s *Service) revalidateCoupons(ctx context.Context, cart *domain.Cart, userID string) error {
	if len(cart.Coupons) == 0 {
		return nil
	}

	cart.Totals = s.calc.Compute(cart.Items, nil, 0)

	kept := make([]domain.AppliedCoupon, 0, len(cart.Coupons))
	for _, applied := range cart.Coupons {
		cpn, err := s.coupons.FindByCode(ctx, applied.Code)
		if errors.Is(err, domain.ErrCouponNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("revalidate coupon %s: %w", applied.Code, err)
		}

		// Validate against the cart without this coupon so the
		// already-applied and stacking checks see its peers only.
		probe := *cart
		probe.Coupons = kept

		categories, err := s.categoriesFor(ctx, cpn, &probe)
		if err != nil {
			return err
		}
		if err := s.validator.Validate(ctx, cpn, &probe, userID, categories); err != nil {
			log.Printf("dropping coupon %s from cart of user %s: %v", applied.Code, userID, err)
			continue
		}

		applied.Discount = pricing.CouponDiscount(cpn, cart.Totals.Subtotal)
		applied.Stackable = cpn.Stackable
		kept = append(kept, applied)
	}
	cart.Coupons = kept
	return nil
}

// categoriesFor fetches category memberships only when the coupon actually
// restricts by category.
func (s *Service) categoriesFor(ctx context.Context, cpn *domain.Coupon, cart *domain.Cart) (map[int64][]int64, error) {
	if len(cpn.Restriction.CategoryIDs) == 0 {
		return nil, nil
	}

	categories := make(map[int64][]int64, len(cart.Items))
	for _, item := range cart.Items {
		snap, err := s.catalog.GetProduct(ctx, item.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch categories for product %d: %w", item.ProductID, err)
		}
		categories[item.ProductID] = snap.CategoryIDs
	}
	return categories, nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

func lineFromSnapshot(snap *catalog.Snapshot, quantity int, addedAt time.Time) domain.LineItem {
	item := domain.LineItem{
		ProductID: snap.ProductID,
		VendorID:  snap.VendorID,
		Name:      snap.Name,
		ImageURL:  snap.ImageURL,
		UnitPrice: snap.Price,
		SalePrice: snap.SalePrice,
		Quantity:  quantity,
		AddedAt:   addedAt,
	}
	item.Subtotal = pricing.LineSubtotal(item)
	return item
}

func emptyCart(userID string) *domain.Cart {
	now := time.Now()
	return &domain.Cart{
		UserID:    userID,
		Items:     []domain.LineItem{},
		Coupons:   []domain.AppliedCoupon{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
