package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osanz/go_market/internal/domain"
)

type cartServiceMock struct {
	cart       *domain.Cart
	err        error
	lastUserID string
	lastProd   int64
	lastQty    int
	lastCode   string
}

func (m *cartServiceMock) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.lastUserID = userID
	return m.cart, m.err
}

func (m *cartServiceMock) AddItem(_ context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	m.lastUserID, m.lastProd, m.lastQty = userID, productID, quantity
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

func (m *cartServiceMock) UpdateQuantity(_ context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	m.lastUserID, m.lastProd, m.lastQty = userID, productID, quantity
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

func (m *cartServiceMock) RemoveItem(_ context.Context, userID string, productID int64) (*domain.Cart, error) {
	m.lastUserID, m.lastProd = userID, productID
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

func (m *cartServiceMock) ApplyCoupon(_ context.Context, userID string, code string) (*domain.Cart, error) {
	m.lastUserID, m.lastCode = userID, code
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

func (m *cartServiceMock) RemoveCoupon(_ context.Context, userID string, code string) (*domain.Cart, error) {
	m.lastUserID, m.lastCode = userID, code
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

func (m *cartServiceMock) Reconcile(_ context.Context, userID string) (*domain.Cart, error) {
	m.lastUserID = userID
	return m.cart, m.err
}

func (m *cartServiceMock) Clear(_ context.Context, userID string) (*domain.Cart, error) {
	m.lastUserID = userID
	return m.cart, m.err
}

func testCart() *domain.Cart {
	return &domain.Cart{
		UserID: "1",
		Items: []domain.LineItem{
			{ProductID: 1, VendorID: 10, Name: "Laptop", UnitPrice: 100_000, Quantity: 2, Subtotal: 200_000},
		},
		Totals: domain.Totals{Subtotal: 200_000, Tax: 38_000, Total: 238_000},
	}
}

// cartRouter wires the mock behind the real route tree with mock auth, so
// tests exercise URL params and method matching exactly as production does.
func cartRouter(mock *cartServiceMock) http.Handler {
	cartHandler := NewCartHandler(mock, 5*time.Second)
	ordersHandler := NewOrdersHandler(&orderServiceMock{}, 5*time.Second)
	return MockAuthMiddleware(Routes(cartHandler, ordersHandler))
}

func TestGetCart_Success(t *testing.T) {
	mock := &cartServiceMock{cart: testCart()}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/api/v1/cart", nil)

	cartRouter(mock).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)

	var response domain.Cart
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, "1", response.UserID)
	assert.Equal(t, 238_000.0, response.Totals.Total)
}

func TestGetCart_HeaderSelectsUser(t *testing.T) {
	mock := &cartServiceMock{cart: testCart()}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/api/v1/cart", nil)
	request.Header.Set("X-User-ID", "42")

	cartRouter(mock).ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "42", mock.lastUserID)
}

func TestGetCart_Unauthorized(t *testing.T) {
	handler := NewCartHandler(&cartServiceMock{cart: testCart()}, 5*time.Second)
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/", nil)
	// No user_id in context

	handler.GetCart(recorder, request)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAddItem_Success(t *testing.T) {
	mock := &cartServiceMock{cart: testCart()}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/api/v1/cart/items",
		strings.NewReader(`{"product_id": 1, "quantity": 2}`))

	cartRouter(mock).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, int64(1), mock.lastProd)
	assert.Equal(t, 2, mock.lastQty)
}

func TestAddItem_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{not json`, "invalid_request"},
		{"zero product id", `{"product_id": 0, "quantity": 1}`, "invalid_product_id"},
		{"negative product id", `{"product_id": -3, "quantity": 1}`, "invalid_product_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(tt.body))

			cartRouter(&cartServiceMock{cart: testCart()}).ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			var response ErrorResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
			assert.Equal(t, tt.code, response.Code)
		})
	}
}

func TestAddItem_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown product", domain.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
		{"out of stock", domain.ErrInsufficientStock, http.StatusUnprocessableEntity, "insufficient_stock"},
		{"unapproved product", domain.ErrProductUnavailable, http.StatusUnprocessableEntity, "product_unavailable"},
		{"bad quantity", domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest("POST", "/api/v1/cart/items",
				strings.NewReader(`{"product_id": 1, "quantity": 2}`))

			cartRouter(&cartServiceMock{err: tt.err}).ServeHTTP(recorder, request)

			assert.Equal(t, tt.status, recorder.Code)
			var response ErrorResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
			assert.Equal(t, tt.code, response.Code)
		})
	}
}

func TestUpdateQuantity_URLParam(t *testing.T) {
	mock := &cartServiceMock{cart: testCart()}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("PUT", "/api/v1/cart/items/7",
		strings.NewReader(`{"quantity": 0}`))

	cartRouter(mock).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, int64(7), mock.lastProd)
	assert.Equal(t, 0, mock.lastQty, "zero passes through; the service removes the line")
}

func TestRemoveItem_InvalidProductID(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("DELETE", "/api/v1/cart/items/abc", nil)

	cartRouter(&cartServiceMock{cart: testCart()}).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestApplyCoupon_Success(t *testing.T) {
	mock := &cartServiceMock{cart: testCart()}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/api/v1/cart/coupons",
		strings.NewReader(`{"code": "tenoff"}`))

	cartRouter(mock).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "tenoff", mock.lastCode, "normalization is the service's job")
}

func TestApplyCoupon_EligibilityFailureMapping(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{domain.ErrCouponExpired, "coupon_expired"},
		{domain.ErrMinimumSpendNotMet, "minimum_spend_not_met"},
		{domain.ErrCouponNotStackable, "coupon_not_stackable"},
		{domain.ErrCouponUsageLimit, "coupon_usage_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest("POST", "/api/v1/cart/coupons",
				strings.NewReader(`{"code": "X"}`))

			cartRouter(&cartServiceMock{err: tt.err}).ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
			var response ErrorResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
			assert.Equal(t, tt.code, response.Code)
		})
	}
}

func TestRemoveCoupon_URLParam(t *testing.T) {
	mock := &cartServiceMock{cart: testCart()}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("DELETE", "/api/v1/cart/coupons/TENOFF", nil)

	cartRouter(mock).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "TENOFF", mock.lastCode)
}

func TestClearCart_Success(t *testing.T) {
	mock := &cartServiceMock{cart: &domain.Cart{UserID: "1", Items: []domain.LineItem{}}}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("DELETE", "/api/v1/cart", nil)

	cartRouter(mock).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestReconcile_Success(t *testing.T) {
	mock := &cartServiceMock{cart: testCart()}
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/api/v1/cart/reconcile", nil)

	cartRouter(mock).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "1", mock.lastUserID)
}
