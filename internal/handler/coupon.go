package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/velvetlane/storefront/internal/domain/coupon"
)

type validateCouponRequest struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
	Items       []struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	UserID string `json:"userId"`
}

type validateCouponResponse struct {
	Valid          bool             `json:"valid"`
	DiscountAmount *decimal.Decimal `json:"discountAmount,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// ValidateCoupon evaluates a coupon code against an order context. It never
// mutates usage counters: those move only when an order is finalized.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		respondMessage(w, http.StatusBadRequest, "code required")
		return
	}
	if req.OrderAmount.IsNegative() {
		respondMessage(w, http.StatusBadRequest, "orderAmount must not be negative")
		return
	}

	items := make([]coupon.Item, 0, len(req.Items))
	for _, it := range req.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, coupon.Item{ProductID: it.ID, Category: it.Category, Quantity: qty})
	}

	result, err := h.coupons.Evaluate(r.Context(), req.Code, req.OrderAmount, items, req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := validateCouponResponse{Valid: result.Valid}
	if result.Valid {
		d := result.Discount
		resp.DiscountAmount = &d
	} else {
		resp.Reason = string(result.Reason)
	}
	respondJSON(w, http.StatusOK, resp)
}
