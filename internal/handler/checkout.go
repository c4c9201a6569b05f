package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velvetlane/storefront/internal/domain/order"
)

type checkoutRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	CouponCode string `json:"couponCode"`
	Address    struct {
		Name       string `json:"name"`
		Line       string `json:"line"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postalCode"`
		Country    string `json:"country"`
	} `json:"address"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Instructions string `json:"instructions"`
}

type orderResponse struct {
	ID          string           `json:"id"`
	Items       []orderItemBody  `json:"items"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	Discount    decimal.Decimal  `json:"discount"`
	CouponCode  string           `json:"couponCode,omitempty"`
	Total       decimal.Decimal  `json:"total"`
	Status      string           `json:"status"`
	TrackingURL string           `json:"trackingUrl,omitempty"`
	NeedsReview bool             `json:"needsReview,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type orderItemBody struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

// Checkout is the direct checkout path: it validates stock up front and
// creates a pending order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Address.Line == "" || req.Address.City == "" || req.Address.Country == "" {
		respondMessage(w, http.StatusBadRequest, "shipping address incomplete")
		return
	}

	items := make([]order.CheckoutItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.CheckoutItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	o, err := h.orderService.Checkout(r.Context(), order.CheckoutRequest{
		UserID:     userID(r),
		Items:      items,
		CouponCode: req.CouponCode,
		Address: order.Address{
			Name:       req.Address.Name,
			Line:       req.Address.Line,
			City:       req.Address.City,
			State:      req.Address.State,
			PostalCode: req.Address.PostalCode,
			Country:    req.Address.Country,
		},
		Email:        req.Email,
		Phone:        req.Phone,
		Instructions: req.Instructions,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderResponse(o))
}

// ListMyOrders returns the authenticated buyer's order history.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	orders, err := h.orders.ListByUser(r.Context(), uid)
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

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemBody, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemBody{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Image:     it.Image,
		})
	}
	return orderResponse{
		ID:          o.ID,
		Items:       items,
		Subtotal:    o.Subtotal,
		Discount:    o.Discount,
		CouponCode:  o.CouponCode,
		Total:       o.Total,
		Status:      string(o.Status),
		TrackingURL: o.TrackingURL,
		NeedsReview: o.NeedsReview,
		CreatedAt:   o.CreatedAt,
	}
}
