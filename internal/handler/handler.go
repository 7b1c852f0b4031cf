// Package handler serves the storefront HTTP API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eubiosis/checkout/internal/domain/auth"
	"github.com/eubiosis/checkout/internal/domain/cart"
	"github.com/eubiosis/checkout/internal/domain/checkout"
	"github.com/eubiosis/checkout/internal/domain/notify"
	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/domain/subscriber"
	"github.com/eubiosis/checkout/internal/effect"
)

// Mailer sends the order emails requested by the back office.
type Mailer interface {
	OrderEmails(ctx context.Context, typ notify.EmailType, s notify.Summary) []effect.Result[string]
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// RedirectDelay is how long the payment redirect page waits before
	// submitting the gateway form.
	RedirectDelay time.Duration
	// LimitedDealDiscountPercent is the funnel upsell discount.
	LimitedDealDiscountPercent int
	// MaxProofBytes caps proof-of-payment uploads.
	MaxProofBytes int64
}

// Deps are the domain services behind the API.
type Deps struct {
	Checkout    *checkout.Service
	Cart        *cart.Service
	Subscribers *subscriber.Service
	Orders      order.Repository
	Mailer      Mailer
	APIKeys     auth.Repository
	Pepper      []byte
}

const defaultMaxProofBytes = 10 << 20

// Handler routes API requests to the domain services.
type Handler struct {
	checkout    *checkout.Service
	cart        *cart.Service
	subscribers *subscriber.Service
	orders      order.Repository
	mailer      Mailer
	security    *SecurityHandler

	sellerNumber  string
	redirectDelay time.Duration
	dealDiscount  int
	maxProofBytes int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, deps Deps) *Handler {
	if cfg.MaxProofBytes <= 0 {
		cfg.MaxProofBytes = defaultMaxProofBytes
	}
	return &Handler{
		checkout:      deps.Checkout,
		cart:          deps.Cart,
		subscribers:   deps.Subscribers,
		orders:        deps.Orders,
		mailer:        deps.Mailer,
		security:      NewSecurityHandler(deps.APIKeys, deps.Pepper),
		sellerNumber:  deps.Checkout.SellerNumber(),
		redirectDelay: cfg.RedirectDelay,
		dealDiscount:  cfg.LimitedDealDiscountPercent,
		maxProofBytes: cfg.MaxProofBytes,
	}
}

// Routes mounts the API on a new router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/pricing/quote", h.quote)
		r.Get("/funnel/upsell", h.upsell)
		r.Get("/funnel/oto", h.otoOffers)
		r.Get("/provinces", h.provinces)

		r.Route("/cart/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Patch("/items", h.updateCartItem)
			r.Delete("/items", h.removeCartItem)
		})

		r.Post("/checkout", h.startCheckout)
		r.Route("/checkout/{id}", func(r chi.Router) {
			r.Get("/", h.getCheckout)
			r.Put("/customer", h.updateCustomer)
			r.Put("/province", h.setProvince)
			r.Post("/continue", h.continueCheckout)
			r.Post("/payment-method", h.selectPaymentMethod)
			r.Post("/irresistible-offer", h.acceptIrresistibleOffer)
			r.Post("/seller-contacted", h.sellerContacted)
			r.Post("/pay", h.pay)
			r.Get("/redirect", h.redirect)
			r.Post("/proof", h.submitProof)
		})

		r.Get("/orders/{id}", h.getOrder)
		r.Post("/subscribe", h.subscribe)

		r.With(h.security.Middleware).Post("/admin/notifications", h.sendNotifications)
	})
	return r
}
