package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/osanz/go_market/internal/domain"
)

// OrderService is the slice of the order service the handlers consume.
type OrderService interface {
	Checkout(ctx context.Context, userID string, address domain.Address, shippingCost float64) (*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListForVendor(ctx context.Context, vendorID int64) ([]*domain.Order, error)
	Confirm(ctx context.Context, orderID uuid.UUID, comment string) (*domain.Order, error)
	StartProcessing(ctx context.Context, orderID uuid.UUID, comment string) (*domain.Order, error)
	Ship(ctx context.Context, orderID uuid.UUID, trackingNumber, carrier, comment string) (*domain.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID, comment string) (*domain.Order, error)
	ConfirmDelivery(ctx context.Context, orderID uuid.UUID, rating int, comment string) (*domain.Order, error)
	DisputeDelivery(ctx context.Context, orderID uuid.UUID, comment string, problems []domain.Problem) (*domain.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, comment string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type CheckoutRequestDTO struct {
	Address      domain.Address `json:"address"`
	ShippingCost float64        `json:"shipping_cost"`
}

type CommentRequestDTO struct {
	Comment string `json:"comment"`
}

type ShipRequestDTO struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	Comment        string `json:"comment"`
}

type DeliveryConfirmationRequestDTO struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type DeliveryDisputeRequestDTO struct {
	Comment  string           `json:"comment"`
	Problems []domain.Problem `json:"problems"`
}

// POST /api/v1/checkout
func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ShippingCost < 0 {
		respondError(w, http.StatusBadRequest, "invalid_shipping_cost", "shipping_cost must not be negative")
		return
	}

	order, err := h.orders.Checkout(ctx, userID, req.Address, req.ShippingCost)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// GET /api/v1/orders
// With ?vendor_id=N the caller gets the vendor view instead of their own
// purchase history.
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var orders []*domain.Order
	var err error

	if vendorStr := r.URL.Query().Get("vendor_id"); vendorStr != "" {
		vendorID, parseErr := strconv.ParseInt(vendorStr, 10, 64)
		if parseErr != nil || vendorID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_vendor_id", "vendor_id must be a positive integer")
			return
		}
		orders, err = h.orders.ListForVendor(ctx, vendorID)
	} else {
		orders, err = h.orders.ListForUser(ctx, userID)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{order_id}/confirm
func (h *OrdersHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Confirm)
}

// POST /api/v1/orders/{order_id}/processing
func (h *OrdersHandler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.StartProcessing)
}

// POST /api/v1/orders/{order_id}/ship
func (h *OrdersHandler) Ship(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req ShipRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.Ship(ctx, orderID, req.TrackingNumber, req.Carrier, req.Comment)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{order_id}/delivered
func (h *OrdersHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.MarkDelivered)
}

// POST /api/v1/orders/{order_id}/delivery-confirmation
func (h *OrdersHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req DeliveryConfirmationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.ConfirmDelivery(ctx, orderID, req.Rating, req.Comment)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{order_id}/delivery-dispute
func (h *OrdersHandler) DisputeDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req DeliveryDisputeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.orders.DisputeDelivery(ctx, orderID, req.Comment, req.Problems)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Cancel)
}

// transition handles the comment-only lifecycle endpoints. An absent body is
// treated as an empty comment.
func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, call func(context.Context, uuid.UUID, string) (*domain.Order, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req CommentRequestDTO
	_ = json.NewDecoder(r.Body).Decode(&req)

	order, err := call(ctx, orderID, req.Comment)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid UUID")
		return uuid.Nil, false
	}
	return orderID, true
}
