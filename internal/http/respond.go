package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/osanz/go_market/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// errorMapping pins each domain sentinel to an HTTP status and a stable
// machine-readable reason code. Clients branch on the code, not the message.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrAddressRequired, http.StatusBadRequest, "address_required"},
	{domain.ErrShipmentDataRequired, http.StatusBadRequest, "shipment_data_required"},
	{domain.ErrDisputeDataRequired, http.StatusBadRequest, "dispute_data_required"},

	{domain.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{domain.ErrCartNotFound, http.StatusNotFound, "cart_not_found"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{domain.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{domain.ErrCouponNotFound, http.StatusNotFound, "coupon_not_found"},

	{domain.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{domain.ErrCouponAlreadyApplied, http.StatusConflict, "coupon_already_applied"},
	{domain.ErrDeliveryAlreadyAttested, http.StatusConflict, "delivery_already_attested"},
	{domain.ErrVersionConflict, http.StatusConflict, "conflict"},

	{domain.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{domain.ErrCouponInactive, http.StatusUnprocessableEntity, "coupon_inactive"},
	{domain.ErrCouponExpired, http.StatusUnprocessableEntity, "coupon_expired"},
	{domain.ErrCouponExhausted, http.StatusUnprocessableEntity, "coupon_exhausted"},
	{domain.ErrCouponUsageLimit, http.StatusUnprocessableEntity, "coupon_usage_limit"},
	{domain.ErrMinimumSpendNotMet, http.StatusUnprocessableEntity, "minimum_spend_not_met"},
	{domain.ErrRestrictionNotMet, http.StatusUnprocessableEntity, "restriction_not_met"},
	{domain.ErrCouponNotStackable, http.StatusUnprocessableEntity, "coupon_not_stackable"},
	{domain.ErrProductUnavailable, http.StatusUnprocessableEntity, "product_unavailable"},
	{domain.ErrInsufficientStock, http.StatusUnprocessableEntity, "insufficient_stock"},
}

func handleServiceError(w http.ResponseWriter, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}

	log.Printf("internal error: %v", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
