package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/velvetlane/storefront/internal/domain/cart"
)

type cartItemResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart lists the authenticated buyer's cart rows.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	items, err := h.carts.ListByUser(r.Context(), uid)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]cartItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toCartItemResponse(it))
	}
	respondJSON(w, http.StatusOK, out)
}

// AddCartItem adds a product (or merges quantity into an existing row for
// the same product/size/color).
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID == "" || req.Quantity < 1 {
		respondMessage(w, http.StatusBadRequest, "productId and quantity >= 1 required")
		return
	}
	if _, err := h.products.GetByID(r.Context(), req.ProductID); err != nil {
		respondError(w, r, err)
		return
	}

	item := cart.Item{
		UserID:    uid,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Size:      req.Size,
		Color:     req.Color,
	}
	if err := h.carts.Upsert(r.Context(), &item); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCartItemResponse(item))
}

// UpdateCartItem sets the quantity of one cart row.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updateCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity < 1 {
		respondMessage(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), uid, chi.URLParam(r, "id"), req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCartItem removes one cart row.
func (h *Handler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.carts.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toCartItemResponse(it cart.Item) cartItemResponse {
	return cartItemResponse{
		ID:        it.ID,
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		Size:      it.Size,
		Color:     it.Color,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}
