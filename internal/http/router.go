package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the API route tree. Global middleware (logging, recovery,
// timeouts, auth) is applied by the caller so tests can exercise routes bare.
func Routes(cartHandler *CartHandler, ordersHandler *OrdersHandler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Post("/coupons", cartHandler.ApplyCoupon)
			r.Delete("/coupons/{code}", cartHandler.RemoveCoupon)
			r.Post("/reconcile", cartHandler.Reconcile)
		})

		r.Post("/checkout", ordersHandler.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Route("/{order_id}", func(r chi.Router) {
				r.Get("/", ordersHandler.GetOrder)
				r.Post("/confirm", ordersHandler.Confirm)
				r.Post("/processing", ordersHandler.StartProcessing)
				r.Post("/ship", ordersHandler.Ship)
				r.Post("/delivered", ordersHandler.MarkDelivered)
				r.Post("/delivery-confirmation", ordersHandler.ConfirmDelivery)
				r.Post("/delivery-dispute", ordersHandler.DisputeDelivery)
				r.Post("/cancel", ordersHandler.Cancel)
			})
		})
	})

	return r
}
