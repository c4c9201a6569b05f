package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velvetlane/storefront/internal/domain/banner"
	"github.com/velvetlane/storefront/internal/domain/content"
	"github.com/velvetlane/storefront/internal/domain/coupon"
	"github.com/velvetlane/storefront/internal/domain/order"
	"github.com/velvetlane/storefront/internal/domain/product"
)

// --- Products ---

type adminProductRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
	Stock       int             `json:"stock"`
}

// AdminCreateProduct inserts a catalog item.
func (h *Handler) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req adminProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Price.IsNegative() || req.Stock < 0 {
		respondMessage(w, http.StatusBadRequest, "name required, price and stock must not be negative")
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	p := product.Product{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Images:      req.Images,
		Stock:       req.Stock,
	}
	if err := h.products.Create(r.Context(), &p); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.toProductResponse(p))
}

// AdminUpdateProduct rewrites a catalog item. InStock is recomputed from the
// submitted stock, never taken from the request.
func (h *Handler) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req adminProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Price.IsNegative() || req.Stock < 0 {
		respondMessage(w, http.StatusBadRequest, "name required, price and stock must not be negative")
		return
	}

	p := product.Product{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Images:      req.Images,
		Stock:       req.Stock,
	}
	if err := h.products.Update(r.Context(), &p); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toProductResponse(p))
}

// AdminDeleteProduct removes a catalog item. Orders keep their snapshots.
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Coupons ---

type adminCouponRequest struct {
	Code                 string           `json:"code"`
	Type                 string           `json:"type"`
	Value                decimal.Decimal  `json:"value"`
	MinAmount            decimal.Decimal  `json:"minAmount"`
	MaxDiscount          decimal.Decimal  `json:"maxDiscount"`
	UsageLimit           int              `json:"usageLimit"`
	UserLimit            int              `json:"userLimit"`
	ValidFrom            *time.Time       `json:"validFrom"`
	ValidUntil           *time.Time       `json:"validUntil"`
	Active               bool             `json:"active"`
	ApplicableProducts   []string         `json:"applicableProducts"`
	ExcludedProducts     []string         `json:"excludedProducts"`
	ApplicableCategories []string         `json:"applicableCategories"`
	ExcludedCategories   []string         `json:"excludedCategories"`
	FirstTimeBuyerOnly   bool             `json:"firstTimeBuyerOnly"`
	MinQuantity          int              `json:"minQuantity"`
	MaxQuantity          int              `json:"maxQuantity"`
	Description          string           `json:"description"`
}

func (req *adminCouponRequest) toCoupon() coupon.Coupon {
	return coupon.Coupon{
		Code:                 req.Code,
		Type:                 coupon.DiscountType(req.Type),
		Value:                req.Value,
		MinAmount:            req.MinAmount,
		MaxDiscount:          req.MaxDiscount,
		UsageLimit:           req.UsageLimit,
		UserLimit:            req.UserLimit,
		ValidFrom:            req.ValidFrom,
		ValidUntil:           req.ValidUntil,
		Active:               req.Active,
		ApplicableProducts:   req.ApplicableProducts,
		ExcludedProducts:     req.ExcludedProducts,
		ApplicableCategories: req.ApplicableCategories,
		ExcludedCategories:   req.ExcludedCategories,
		FirstTimeBuyerOnly:   req.FirstTimeBuyerOnly,
		MinQuantity:          req.MinQuantity,
		MaxQuantity:          req.MaxQuantity,
		Description:          req.Description,
	}
}

// validateCouponRefs rejects coupons naming product ids or categories the
// catalog does not contain, so stale references are caught at write time
// instead of silently never matching.
func (h *Handler) validateCouponRefs(w http.ResponseWriter, r *http.Request, c *coupon.Coupon) bool {
	ids := append(append([]string{}, c.ApplicableProducts...), c.ExcludedProducts...)
	missing, err := h.products.MissingIDs(r.Context(), ids)
	if err != nil {
		respondError(w, r, err)
		return false
	}
	if len(missing) > 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "unknown product ids: " + strings.Join(missing, ", "),
		})
		return false
	}

	cats := append(append([]string{}, c.ApplicableCategories...), c.ExcludedCategories...)
	missing, err = h.products.MissingCategories(r.Context(), cats)
	if err != nil {
		respondError(w, r, err)
		return false
	}
	if len(missing) > 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "unknown categories: " + strings.Join(missing, ", "),
		})
		return false
	}
	return true
}

// AdminListCoupons returns all coupons.
func (h *Handler) AdminListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.couponRepo.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, coupons)
}

// AdminCreateCoupon inserts a coupon after invariant and reference checks.
func (h *Handler) AdminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req adminCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := req.toCoupon()
	if err := c.CheckInvariants(); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.validateCouponRefs(w, r, &c) {
		return
	}
	if err := h.couponRepo.Create(r.Context(), &c); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// AdminUpdateCoupon rewrites a coupon. usage_count is never writable here.
func (h *Handler) AdminUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req adminCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Code = chi.URLParam(r, "code")
	c := req.toCoupon()
	if err := c.CheckInvariants(); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.validateCouponRefs(w, r, &c) {
		return
	}
	if err := h.couponRepo.Update(r.Context(), &c); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// AdminDeleteCoupon removes a coupon.
func (h *Handler) AdminDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.couponRepo.Delete(r.Context(), coupon.NormalizeCode(chi.URLParam(r, "code"))); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Banners ---

type adminBannerRequest struct {
	Title       string              `json:"title"`
	Subtitle    string              `json:"subtitle"`
	Description string              `json:"description"`
	Surface     string              `json:"surface"`
	Position    string              `json:"position"`
	Priority    int                 `json:"priority"`
	Active      bool                `json:"active"`
	StartsAt    time.Time           `json:"startsAt"`
	EndsAt      time.Time           `json:"endsAt"`
	Audience    banner.Audience     `json:"audience"`
	Rules       banner.DisplayRules `json:"rules"`
	Content     banner.Content      `json:"content"`
}

func (req *adminBannerRequest) toBanner(id string) banner.Banner {
	return banner.Banner{
		ID:          id,
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Description: req.Description,
		Surface:     banner.Surface(req.Surface),
		Position:    req.Position,
		Priority:    req.Priority,
		Active:      req.Active,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Audience:    req.Audience,
		Rules:       req.Rules,
		Content:     req.Content,
	}
}

// AdminListBanners returns all banners with their tracking counters.
func (h *Handler) AdminListBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := h.banners.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, banners)
}

// AdminCreateBanner inserts a banner.
func (h *Handler) AdminCreateBanner(w http.ResponseWriter, r *http.Request) {
	var req adminBannerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b := req.toBanner("")
	if err := b.CheckInvariants(); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.banners.Create(r.Context(), &b); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

// AdminUpdateBanner rewrites a banner. Counters are never writable here.
func (h *Handler) AdminUpdateBanner(w http.ResponseWriter, r *http.Request) {
	var req adminBannerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b := req.toBanner(chi.URLParam(r, "id"))
	if err := b.CheckInvariants(); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.banners.Update(r.Context(), &b); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// AdminDeleteBanner removes a banner.
func (h *Handler) AdminDeleteBanner(w http.ResponseWriter, r *http.Request) {
	if err := h.banners.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Orders ---

// AdminListOrders returns all orders, newest first.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// AdminGetOrder returns one order.
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateOrderStatusRequest struct {
	Status      string `json:"status"`
	TrackingURL string `json:"trackingUrl"`
}

// AdminUpdateOrderStatus moves an order through fulfilment.
func (h *Handler) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, req.TrackingURL); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Pages ---

type adminPageRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Published bool   `json:"published"`
}

// AdminListPages returns every page including drafts.
func (h *Handler) AdminListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.pages.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]pageResponse, 0, len(pages))
	for i := range pages {
		out = append(out, toPageResponse(&pages[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// AdminUpsertPage creates or rewrites a page by slug.
func (h *Handler) AdminUpsertPage(w http.ResponseWriter, r *http.Request) {
	var req adminPageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := content.Page{
		Slug:      chi.URLParam(r, "slug"),
		Title:     req.Title,
		Body:      req.Body,
		Published: req.Published,
	}
	if err := p.CheckInvariants(); err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.pages.Upsert(r.Context(), &p); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPageResponse(&p))
}

// AdminDeletePage removes a page.
func (h *Handler) AdminDeletePage(w http.ResponseWriter, r *http.Request) {
	if err := h.pages.Delete(r.Context(), chi.URLParam(r, "slug")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
