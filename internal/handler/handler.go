// Package handler exposes the store over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/auth"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/order"
	"github.com/xenking/kart-store/internal/domain/product"
	"github.com/xenking/kart-store/pkg/httpmiddleware"
)

// Deps are the services the handlers delegate to.
type Deps struct {
	Products  product.Repository
	Carts     *cart.Service
	Addresses *address.Service
	Coupons   *coupon.Service
	Orders    *order.Service
	Tokens    *auth.TokenManager
}

// Handler serves the /api routes.
type Handler struct {
	products  product.Repository
	carts     *cart.Service
	addresses *address.Service
	coupons   *coupon.Service
	orders    *order.Service
	tokens    *auth.TokenManager
	validate  *validator.Validate
}

// New creates a Handler.
func New(deps Deps) *Handler {
	return &Handler{
		products:  deps.Products,
		carts:     deps.Carts,
		addresses: deps.Addresses,
		coupons:   deps.Coupons,
		orders:    deps.Orders,
		tokens:    deps.Tokens,
		validate:  newValidator(),
	}
}

// Mount registers the /api routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/cart", h.viewCart)
			r.Post("/cart", h.addToCart)
			r.Put("/cart/{productID}", h.updateCartLine)
			r.Delete("/cart/{productID}", h.removeCartLine)

			r.Get("/addresses", h.listAddresses)
			r.Post("/addresses", h.createAddress)
			r.Put("/addresses/{id}/default", h.setDefaultAddress)
			r.Delete("/addresses/{id}", h.deleteAddress)

			r.Get("/coupons", h.listCoupons)
			r.Post("/coupons/validate", h.validateCoupon)

			r.Post("/orders", h.placeOrder)
			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Post("/coupons", h.createCoupon)
				r.Delete("/coupons/{id}", h.deleteCoupon)
				r.Put("/orders/{id}/status", h.updateOrderStatus)
				r.Get("/orders/stats", h.orderStats)
			})
		})
	})
}

// Routes returns a chi router with the /api routes and JSON 404/405 replies.
// The middlewares run inside the router, so they can see the matched route
// pattern.
func (h *Handler) Routes(middlewares ...httpmiddleware.Middleware) chi.Router {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.Mount(r)
	return r
}
