// Package handler exposes the storefront over HTTP: catalog, cart, coupon
// validation, banner delivery, checkout, the payment webhook, CMS pages, and
// the admin back office.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/velvetlane/storefront/internal/domain/banner"
	"github.com/velvetlane/storefront/internal/domain/cart"
	"github.com/velvetlane/storefront/internal/domain/content"
	"github.com/velvetlane/storefront/internal/domain/coupon"
	"github.com/velvetlane/storefront/internal/domain/order"
	"github.com/velvetlane/storefront/internal/domain/product"
	"github.com/velvetlane/storefront/internal/payment"
)

// userIDHeader carries the authenticated shopper's identity, set by the auth
// proxy in front of this service. An absent header means a guest.
const userIDHeader = "X-User-ID"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses. When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Handler wires the HTTP surface to the domain services and repositories.
type Handler struct {
	cfg          Config
	products     product.Repository
	carts        cart.Repository
	coupons      *coupon.Service
	couponRepo   coupon.Repository
	banners      banner.Repository
	orders       order.Repository
	orderService *order.Service
	pages        content.Repository
	verifier     *payment.Verifier
	now          func() time.Time
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	carts cart.Repository,
	coupons *coupon.Service,
	couponRepo coupon.Repository,
	banners banner.Repository,
	orders order.Repository,
	orderService *order.Service,
	pages content.Repository,
	verifier *payment.Verifier,
) *Handler {
	return &Handler{
		cfg:          cfg,
		products:     products,
		carts:        carts,
		coupons:      coupons,
		couponRepo:   couponRepo,
		banners:      banners,
		orders:       orders,
		orderService: orderService,
		pages:        pages,
		verifier:     verifier,
		now:          time.Now,
	}
}

// Routes builds the API router. Admin routes are gated by sec.
func (h *Handler) Routes(sec *Security) chi.Router {
	r := chi.NewRouter()

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/", h.AddCartItem)
		r.Put("/{id}", h.UpdateCartItem)
		r.Delete("/{id}", h.DeleteCartItem)
	})

	r.Post("/coupons/validate", h.ValidateCoupon)

	r.Route("/banners", func(r chi.Router) {
		r.Post("/select", h.SelectBanners)
		r.Post("/{id}/events", h.RecordBannerEvent)
	})

	r.Post("/checkout", h.Checkout)
	r.Post("/webhooks/payment", h.PaymentWebhook)

	r.Get("/orders", h.ListMyOrders)
	r.Get("/pages/{slug}", h.GetPage)

	r.Route("/admin", func(r chi.Router) {
		r.Use(sec.RequireAdmin)
		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.AdminCreateProduct)
			r.Put("/{id}", h.AdminUpdateProduct)
			r.Delete("/{id}", h.AdminDeleteProduct)
		})
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", h.AdminListCoupons)
			r.Post("/", h.AdminCreateCoupon)
			r.Put("/{code}", h.AdminUpdateCoupon)
			r.Delete("/{code}", h.AdminDeleteCoupon)
		})
		r.Route("/banners", func(r chi.Router) {
			r.Get("/", h.AdminListBanners)
			r.Post("/", h.AdminCreateBanner)
			r.Put("/{id}", h.AdminUpdateBanner)
			r.Delete("/{id}", h.AdminDeleteBanner)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.AdminListOrders)
			r.Get("/{id}", h.AdminGetOrder)
			r.Put("/{id}/status", h.AdminUpdateOrderStatus)
		})
		r.Route("/pages", func(r chi.Router) {
			r.Get("/", h.AdminListPages)
			r.Put("/{slug}", h.AdminUpsertPage)
			r.Delete("/{slug}", h.AdminDeletePage)
		})
	})

	return r
}

func userID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Code: status, Message: msg})
}

// respondError maps domain errors onto the HTTP taxonomy: validation 400,
// missing 404, conflicts 409, auth 401, everything else 500 (retriable by
// the caller).
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidQty   *order.InvalidQuantityError
		notFoundProd *order.ProductNotFoundError
		noStock      *order.InsufficientStockError
		couponRej    *order.CouponRejectedError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems), errors.As(err, &invalidQty):
		respondMessage(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFoundProd),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, banner.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, content.ErrNotFound):
		respondMessage(w, http.StatusNotFound, err.Error())
	case errors.As(err, &noStock):
		respondJSON(w, http.StatusConflict, errorResponse{
			Code:    http.StatusConflict,
			Message: err.Error(),
			Reason:  "insufficient_stock",
		})
	case errors.As(err, &couponRej):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: err.Error(),
			Reason:  couponRej.Reason,
		})
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondMessage(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}
